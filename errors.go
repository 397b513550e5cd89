// Package floppyos defines the error values shared by the kernel cores and
// the emulated hardware they run against.
package floppyos

import (
	"errors"
	"fmt"
)

// KernelError is the base type for all sentinel errors in this module. Derived
// errors created with WithMessage or Wrap still match the sentinel through
// errors.Is.
type KernelError string

// Process and scheduler errors.
const ErrProcessTableFull = KernelError("Process table is full")

// File system errors.
const ErrFileNotFound = KernelError("No such file in directory")
const ErrFileNotOpen = KernelError("Operation requires an open file")
const ErrFileAlreadyOpen = KernelError("A file is already open")
const ErrDirectoryFull = KernelError("No free directory entry")
const ErrNoSpaceOnDevice = KernelError("No free cluster on disk")
const ErrFATMismatch = KernelError("FAT copies disagree")
const ErrChainTooLong = KernelError("Cluster chain exceeds disk size")
const ErrEndOfFile = KernelError("Read past end of file")

// Device errors.
const ErrControllerMissing = KernelError("Floppy controller not present")
const ErrNotWritable = KernelError("Medium is write protected")
const ErrDeviceFailed = KernelError("Device error persisted through retries")
const ErrCommandTimeout = KernelError("Controller not ready within timeout")
const ErrArgumentOutOfRange = KernelError("Numerical argument out of domain")

func (e KernelError) Error() string {
	return string(e)
}

// WithMessage returns an error that appends detail text to the sentinel while
// still matching it with errors.Is.
func (e KernelError) WithMessage(message string) error {
	return &wrappedError{
		message: fmt.Sprintf("%s: %s", string(e), message),
		parents: []error{e},
	}
}

// Wrap returns an error that matches both the sentinel and the wrapped error
// with errors.Is.
func (e KernelError) Wrap(err error) error {
	return &wrappedError{
		message: fmt.Sprintf("%s: %s", string(e), err.Error()),
		parents: []error{e, err},
	}
}

type wrappedError struct {
	message string
	parents []error
}

func (e *wrappedError) Error() string {
	return e.message
}

func (e *wrappedError) Is(target error) bool {
	for _, parent := range e.parents {
		if errors.Is(parent, target) {
			return true
		}
	}
	return false
}
