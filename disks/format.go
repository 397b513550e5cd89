package disks

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/noxer/bytewriter"
)

// Fixed FAT12 layout for the floppy formats the kernel mounts. Sector numbers
// are LBAs counted from the start of the disk.
const (
	// SectorSize is the size of one logical sector, which is also the size of
	// one cluster on these disks.
	SectorSize = 512

	BootSector      = 0
	FATSectors      = 9
	FAT0Sector      = 1
	FAT1Sector      = FAT0Sector + FATSectors
	RootDirSector   = FAT1Sector + FATSectors
	RootDirSectors  = 14
	FirstDataSector = RootDirSector + RootDirSectors

	// FirstDataCluster is the lowest cluster number that maps to a data
	// sector. Entries 0 and 1 of the FAT are reserved, so the data region's
	// sector for cluster c is c + FirstDataSector - FirstDataCluster.
	FirstDataCluster = 2

	// ClusterSectorOffset converts a cluster number to its disk sector:
	// sector = cluster + ClusterSectorOffset.
	ClusterSectorOffset = FirstDataSector - FirstDataCluster

	// TotalFATEntries is the number of cluster slots held by one FAT copy.
	// The kernel stores FAT entries as 16-bit slots on disk, so nine sectors
	// hold 2304 of them.
	TotalFATEntries = FATSectors * SectorSize / 2

	// MaxRootDirEntries is the number of directory entries the kernel manages
	// in the root directory.
	MaxRootDirEntries = 16

	// DirentSize is the size of a single raw directory entry, in bytes.
	DirentSize = 32

	// FreeCluster and EndOfChain are the two special FAT slot values. Any
	// other value is the number of the next cluster in the chain.
	FreeCluster = 0x0000
	EndOfChain  = 0xFFFF
)

// FormatFAT12Image writes a blank FAT12 file system for `geometry` onto
// `stream`: a boot sector, two empty FAT copies with the reserved entries
// marked, and a zeroed root directory. The data region is left untouched.
func FormatFAT12Image(stream io.WriteSeeker, geometry DiskGeometry) error {
	if geometry.BytesPerSector != SectorSize {
		return fmt.Errorf(
			"cannot format a disk with %d-byte sectors, only %d supported",
			geometry.BytesPerSector,
			SectorSize,
		)
	}

	_, err := stream.Seek(0, io.SeekStart)
	if err != nil {
		return err
	}

	systemArea := make([]byte, FirstDataSector*SectorSize)
	writer := bytewriter.New(systemArea)

	// Boot sector. The BPB fields follow the standard field order; the root
	// entry count is the 16 entries the kernel manages, not the capacity of
	// the 14 root directory sectors. The kernel itself never reads it back.
	writer.Write([]byte{0xEB, 0x3C, 0x90})  // JmpBoot
	writer.Write([]byte("FLOPPYOS"))        // OEMName
	binary.Write(writer, binary.LittleEndian, uint16(SectorSize))
	writer.Write([]byte{1})                 // sectors per cluster
	binary.Write(writer, binary.LittleEndian, uint16(1)) // reserved sectors
	writer.Write([]byte{2})                 // FAT copies
	binary.Write(writer, binary.LittleEndian, uint16(MaxRootDirEntries))
	binary.Write(writer, binary.LittleEndian, uint16(geometry.TotalSectors()))
	writer.Write([]byte{0xF0})              // media descriptor: removable
	binary.Write(writer, binary.LittleEndian, uint16(FATSectors))
	binary.Write(writer, binary.LittleEndian, uint16(geometry.SectorsPerTrack))
	binary.Write(writer, binary.LittleEndian, uint16(geometry.Heads))
	binary.Write(writer, binary.LittleEndian, uint32(0)) // hidden sectors
	binary.Write(writer, binary.LittleEndian, uint32(0)) // total sectors 32

	// Pad the rest of the boot sector and close it with the signature.
	bootPadding := SectorSize - 2 - (3 + 8 + 25)
	writer.Write(bytes.Repeat([]byte{0}, bootPadding))
	binary.Write(writer, binary.LittleEndian, uint16(0xAA55))

	// Both FAT copies: slots 0 and 1 are reserved and never allocated, the
	// rest start free.
	for copyIndex := 0; copyIndex < 2; copyIndex++ {
		binary.Write(writer, binary.LittleEndian, uint16(EndOfChain))
		binary.Write(writer, binary.LittleEndian, uint16(EndOfChain))
		writer.Write(bytes.Repeat([]byte{0}, (TotalFATEntries-2)*2))
	}

	// Root directory: every entry free.
	writer.Write(bytes.Repeat([]byte{0}, RootDirSectors*SectorSize))

	_, err = stream.Write(systemArea)
	return err
}
