package fat

import (
	"encoding/binary"

	"github.com/dargueta/floppyos/disks"
	"github.com/hashicorp/go-multierror"
)

// fatEntry reads one 16-bit slot from FAT copy 0 or 1 in its staging
// region.
func (fs *FileSystem) fatEntry(copyIndex int, cluster uint16) uint16 {
	base := uint32(FAT0Address)
	if copyIndex == 1 {
		base = FAT1Address
	}
	offset := base + uint32(cluster)*2
	return binary.LittleEndian.Uint16(fs.ram[offset:])
}

// setFATEntry writes one slot in both FAT copies -- mutations always keep
// the mirrors in step -- and updates the allocation map.
func (fs *FileSystem) setFATEntry(cluster uint16, value uint16) {
	binary.LittleEndian.PutUint16(fs.ram[FAT0Address+uint32(cluster)*2:], value)
	binary.LittleEndian.PutUint16(fs.ram[FAT1Address+uint32(cluster)*2:], value)
	fs.usedClusters.Set(int(cluster), value != disks.FreeCluster)
}

// findFreeCluster returns the lowest-numbered free data cluster, consulting
// the allocation map rebuilt at mount.
func (fs *FileSystem) findFreeCluster() (uint16, bool) {
	for cluster := disks.FirstDataCluster; cluster < disks.TotalFATEntries; cluster++ {
		if !fs.usedClusters.Get(cluster) {
			return uint16(cluster), true
		}
	}
	return 0, false
}

// entryAt views the `index`th directory entry in a directory's staging
// region.
func (fs *FileSystem) entryAt(dir *Directory, index int) dirent {
	offset := dir.stagingAddress + uint32(index*DirentSize)
	return dirent{raw: fs.ram[offset : offset+DirentSize]}
}

// findEntry scans the directory's fixed slots for an entry matching the
// padded name and extension.
func (fs *FileSystem) findEntry(dir *Directory, name, ext []byte) (dirent, bool) {
	for index := 0; index < disks.MaxRootDirEntries; index++ {
		entry := fs.entryAt(dir, index)
		if entry.matches(name, ext) {
			return entry, true
		}
	}
	return dirent{}, false
}

// findFreeEntry scans the directory's fixed slots for the first free entry.
func (fs *FileSystem) findFreeEntry(dir *Directory) (dirent, bool) {
	for index := 0; index < disks.MaxRootDirEntries; index++ {
		entry := fs.entryAt(dir, index)
		if entry.isFree() {
			return entry, true
		}
	}
	return dirent{}, false
}

// flushDirectoryAndFATs writes the directory's sectors and both FAT copies
// back to the floppy. All three writes are attempted even if one fails, and
// the failures come back together.
func (fs *FileSystem) flushDirectoryAndFATs(dir *Directory) error {
	fatBytes := uint(disks.FATSectors * disks.SectorSize)

	var result *multierror.Error
	result = multierror.Append(result, fs.driver.WriteSectors(
		bootDrive,
		disks.RootDirSector,
		dir.stagingAddress,
		disks.RootDirSectors*disks.SectorSize,
	))
	result = multierror.Append(result, fs.driver.WriteSectors(
		bootDrive, disks.FAT0Sector, FAT0Address, fatBytes))
	result = multierror.Append(result, fs.driver.WriteSectors(
		bootDrive, disks.FAT1Sector, FAT1Address, fatBytes))
	return result.ErrorOrNil()
}
