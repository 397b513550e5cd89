// Package testing provides helpers for building the disk images the
// package tests boot from.
package testing

import (
	"io"
	"testing"

	"github.com/dargueta/floppyos/disks"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// NewFormattedImage builds an in-memory, freshly formatted FAT12 image for
// the named geometry and returns both the raw bytes and a stream over them.
// Writes through the stream are visible in the returned slice.
func NewFormattedImage(t *testing.T, slug string) ([]byte, io.ReadWriteSeeker) {
	geometry, err := disks.GetPredefinedDiskGeometry(slug)
	require.NoError(t, err, "geometry %q is not registered", slug)

	imageBytes := make([]byte, geometry.TotalSizeBytes())
	stream := bytesextra.NewReadWriteSeeker(imageBytes)

	require.NoError(
		t,
		disks.FormatFAT12Image(stream, geometry),
		"formatting the blank image failed",
	)
	return imageBytes, stream
}
