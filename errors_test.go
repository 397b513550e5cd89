package floppyos_test

import (
	"errors"
	"testing"

	floppyos "github.com/dargueta/floppyos"
	"github.com/stretchr/testify/assert"
)

func TestKernelErrorWithMessage(t *testing.T) {
	newErr := floppyos.ErrFileNotFound.WithMessage("HELLO.TXT")
	assert.Equal(
		t, "No such file in directory: HELLO.TXT", newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, floppyos.ErrFileNotFound)
}

func TestKernelErrorWrap(t *testing.T) {
	originalErr := errors.New("original error")
	newErr := floppyos.ErrDeviceFailed.Wrap(originalErr)
	expectedMessage := "Device error persisted through retries: original error"

	assert.EqualValues(t, expectedMessage, newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, floppyos.ErrDeviceFailed, "sentinel not set as parent")
}

func TestKernelErrorDistinct(t *testing.T) {
	wrapped := floppyos.ErrFATMismatch.WithMessage("cluster 2")
	assert.NotErrorIs(t, wrapped, floppyos.ErrChainTooLong)
}
