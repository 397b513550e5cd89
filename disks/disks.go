// Package disks describes the floppy disk formats the kernel knows how to
// drive, and formats blank FAT12 images for them.
package disks

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// DiskGeometry describes the physical layout of one floppy format.
type DiskGeometry struct {
	Name               string `csv:"name"`
	Slug               string `csv:"slug"`
	FirstYearAvailable uint   `csv:"first_year_available"`
	FormFactor         string `csv:"form_factor"`
	Cylinders          uint   `csv:"cylinders"`
	Heads              uint   `csv:"heads"`
	SectorsPerTrack    uint   `csv:"sectors_per_track"`
	BytesPerSector     uint   `csv:"bytes_per_sector"`

	// DataRateCode is the value the FDC driver writes to the CCR to select
	// the transfer speed for this format. 0 is 500 kbps, 3 is 1 Mbps.
	DataRateCode uint8 `csv:"data_rate_code"`

	// CMOSDriveType is the drive type nibble reported by CMOS register 0x10
	// for a drive of this format.
	CMOSDriveType uint8 `csv:"cmos_drive_type"`
}

// TotalSectors gives the number of addressable sectors on the disk.
func (g *DiskGeometry) TotalSectors() uint {
	return g.Cylinders * g.Heads * g.SectorsPerTrack
}

// TotalSizeBytes gives the size of the disk, which is also the minimum size
// of an image file for it.
func (g *DiskGeometry) TotalSizeBytes() int64 {
	return int64(g.TotalSectors()) * int64(g.BytesPerSector)
}

// SectorsPerCylinder gives the number of sectors under all heads at one
// cylinder. The LBA to CHS conversion divides by this first.
func (g *DiskGeometry) SectorsPerCylinder() uint {
	return g.Heads * g.SectorsPerTrack
}

// Slug144MB names the 3.5" 1.44 MB high-density format, the one the kernel
// boots from.
const Slug144MB = "floppy-1440"

// https://en.wikipedia.org/wiki/List_of_floppy_disk_formats
//
//go:embed floppy-geometries.csv
var diskGeometriesRawCSV string
var diskGeometries = make(map[string]DiskGeometry)

// GetPredefinedDiskGeometry returns the geometry registered under `slug`.
func GetPredefinedDiskGeometry(slug string) (DiskGeometry, error) {
	geometry, ok := diskGeometries[slug]
	if ok {
		return geometry, nil
	}

	err := fmt.Errorf("no predefined disk geometry exists with slug %q", slug)
	return DiskGeometry{}, err
}

// ListPredefinedDiskGeometries returns the slugs of all registered formats.
func ListPredefinedDiskGeometries() []string {
	slugs := make([]string, 0, len(diskGeometries))
	for slug := range diskGeometries {
		slugs = append(slugs, slug)
	}
	return slugs
}

func init() {
	reader := strings.NewReader(diskGeometriesRawCSV)
	err := gocsv.UnmarshalToCallback(
		reader,
		func(row DiskGeometry) error {
			_, exists := diskGeometries[row.Slug]
			if exists {
				return fmt.Errorf(
					"duplicate definition for disk %q found on row %d",
					row.Slug,
					len(diskGeometries)+1,
				)
			}
			diskGeometries[row.Slug] = row
			return nil
		},
	)
	if err != nil && err != io.EOF {
		panic(err)
	}
}
