// Package fat is the FAT12 file system core: it stages the two FAT copies
// and the root directory in fixed RAM regions, walks and allocates cluster
// chains, and exposes the single-file session API. Every mutating call
// flushes the affected directory sectors and both FAT copies back to the
// floppy before returning; that is the only durability guarantee.
package fat

import (
	"github.com/boljen/go-bitmap"
	floppyos "github.com/dargueta/floppyos"
	"github.com/dargueta/floppyos/disks"
	"github.com/dargueta/floppyos/kernel/fdc"
	"github.com/hashicorp/go-multierror"
)

// Staging regions. They sit far above the kernel image and user process
// stacks so disk transfers can never trample either.
const (
	FAT0Address    = 0x20000
	FAT1Address    = FAT0Address + disks.FATSectors*disks.SectorSize
	RootDirAddress = FAT1Address + disks.FATSectors*disks.SectorSize
	FileAddress    = 0x30000
)

// maxChainSectors bounds every cluster chain walk. A chain longer than the
// whole disk means the FAT is corrupted into a cycle.
const maxChainSectors = 2880

const bootDrive = 0

// Console is where the file system prints user-visible diagnostics.
type Console interface {
	Printf(s string) int
}

// Directory is an open directory: a back-pointer to its entry and the RAM
// region staging its sectors. Only the root directory exists on these
// disks, but moves still take an explicit target.
type Directory struct {
	isOpened       bool
	entry          dirent
	stagingAddress uint32
}

// file is the singleton open-file session.
type file struct {
	isOpened       bool
	entry          dirent
	stagingAddress uint32
	index          uint32
}

// FileSystem is the mounted FAT12 volume.
type FileSystem struct {
	ram     []byte
	driver  *fdc.Driver
	console Console

	// usedClusters tracks which clusters are allocated in either FAT copy,
	// rebuilt at mount and kept in step with every FAT write.
	usedClusters bitmap.Bitmap

	rootEntry        [DirentSize]byte
	currentDirectory Directory
	currentFile      file
}

// New binds a file system to system RAM and the floppy driver. Call InitFS
// before anything else.
func New(ram []byte, driver *fdc.Driver, console Console) *FileSystem {
	return &FileSystem{ram: ram, driver: driver, console: console}
}

// InitFS mounts the volume: both FAT copies and the root directory are read
// into their staging regions, the root is opened as the current directory,
// and the cluster allocation map is rebuilt.
func (fs *FileSystem) InitFS() error {
	fatBytes := uint(disks.FATSectors * disks.SectorSize)

	err := fs.driver.ReadSectors(bootDrive, disks.FAT0Sector, FAT0Address, fatBytes)
	if err != nil {
		return err
	}
	err = fs.driver.ReadSectors(bootDrive, disks.FAT1Sector, FAT1Address, fatBytes)
	if err != nil {
		return err
	}
	err = fs.driver.ReadSectors(
		bootDrive,
		disks.RootDirSector,
		RootDirAddress,
		disks.RootDirSectors*disks.SectorSize,
	)
	if err != nil {
		return err
	}

	// The root has no entry on disk; synthesize one to hang the directory
	// session on.
	rootName := dirent{raw: fs.rootEntry[:]}
	rootName.setName([]byte("ROOT    "))
	rootName.setExt([]byte("   "))

	fs.currentDirectory = Directory{
		isOpened:       true,
		entry:          rootName,
		stagingAddress: RootDirAddress,
	}

	fs.currentFile = file{}

	fs.usedClusters = bitmap.New(disks.TotalFATEntries)
	for cluster := 0; cluster < disks.TotalFATEntries; cluster++ {
		inUse := fs.fatEntry(0, uint16(cluster)) != disks.FreeCluster ||
			fs.fatEntry(1, uint16(cluster)) != disks.FreeCluster
		fs.usedClusters.Set(cluster, inUse)
	}
	return nil
}

// CurrentDirectory returns the directory session files are looked up in.
func (fs *FileSystem) CurrentDirectory() *Directory {
	return &fs.currentDirectory
}

// OpenFile finds a file in the current directory, verifies its cluster
// chain against both FAT copies, and reads every cluster into the file
// staging region. At most one file can be open at a time.
func (fs *FileSystem) OpenFile(filename, ext string) error {
	if fs.currentFile.isOpened {
		fs.say("A file is already open! Please close this file before opening another!\n")
		return floppyos.ErrFileAlreadyOpen
	}

	paddedName := padComponent(filename, direntNameLen)
	paddedExt := padComponent(ext, direntExtLen)

	entry, found := fs.findEntry(&fs.currentDirectory, paddedName, paddedExt)
	if !found {
		return floppyos.ErrFileNotFound.WithMessage(filename)
	}

	// Walk the whole chain first, checking that the FAT copies agree at
	// every step before trusting either.
	cluster := entry.startingCluster()
	steps := 0
	for cluster != disks.EndOfChain {
		if fs.fatEntry(0, cluster) != fs.fatEntry(1, cluster) {
			fs.say("Error: The file was found BUT the FAT table entries for this file differ!\n")
			return floppyos.ErrFATMismatch
		}
		cluster = fs.fatEntry(0, cluster)

		if steps++; steps > maxChainSectors {
			fs.say("Error: The file appears to be bigger than the entire floppy disk!\n")
			return floppyos.ErrChainTooLong
		}
	}

	// Chain is clean; pull each cluster into the staging region in order.
	cluster = entry.startingCluster()
	sectorCount := uint32(0)
	for cluster != disks.EndOfChain {
		sector := uint(cluster) + disks.ClusterSectorOffset
		address := FileAddress + disks.SectorSize*sectorCount

		err := fs.driver.ReadSectors(bootDrive, sector, address, disks.SectorSize)
		if err != nil {
			return err
		}

		sectorCount++
		cluster = fs.fatEntry(0, cluster)
	}

	fs.currentFile = file{
		isOpened:       true,
		entry:          entry,
		stagingAddress: FileAddress,
		index:          0,
	}
	return nil
}

// ReadByte returns the byte at `index` in the open file and moves the
// cursor just past it. Reading at or past the file size reports end of
// file.
func (fs *FileSystem) ReadByte(index uint32) (uint8, error) {
	if !fs.currentFile.isOpened {
		fs.say("Error: File was not opened!\n")
		return 0, floppyos.ErrFileNotOpen
	}
	if index >= fs.currentFile.entry.fileSize() {
		return 0, floppyos.ErrEndOfFile
	}

	fs.currentFile.index = index + 1
	return fs.ram[fs.currentFile.stagingAddress+index], nil
}

// ReadNextByte reads at the cursor.
func (fs *FileSystem) ReadNextByte() (uint8, error) {
	return fs.ReadByte(fs.currentFile.index)
}

// WriteByte stores a byte at `index` in the open file's staging region,
// growing the file size if the write lands past the end. Nothing reaches
// the disk until CloseFile.
func (fs *FileSystem) WriteByte(value uint8, index uint32) error {
	if !fs.currentFile.isOpened {
		fs.say("Error: File was not opened!\n")
		return floppyos.ErrFileNotOpen
	}

	fs.ram[fs.currentFile.stagingAddress+index] = value
	if index+1 > fs.currentFile.entry.fileSize() {
		fs.currentFile.entry.setFileSize(index + 1)
	}
	fs.currentFile.index = index + 1
	return nil
}

// WriteNextByte writes at the cursor.
func (fs *FileSystem) WriteNextByte(value uint8) error {
	return fs.WriteByte(value, fs.currentFile.index)
}

// WriteBytes writes `count` copies of one byte at the cursor.
func (fs *FileSystem) WriteBytes(value uint8, count uint32) error {
	for i := uint32(0); i < count; i++ {
		if err := fs.WriteByte(value, fs.currentFile.index); err != nil {
			return err
		}
	}
	return nil
}

// FileSize returns the size of the open file in bytes.
func (fs *FileSystem) FileSize() (uint32, error) {
	if !fs.currentFile.isOpened {
		return 0, floppyos.ErrFileNotOpen
	}
	return fs.currentFile.entry.fileSize(), nil
}

// CreateFile adds a file to the current directory: first free entry, first
// free cluster, one sector of initial size. The change is flushed to disk
// immediately. The new file is left closed; open it to use it.
func (fs *FileSystem) CreateFile(filename, ext string) error {
	freeEntry, found := fs.findFreeEntry(&fs.currentDirectory)
	if !found {
		return floppyos.ErrDirectoryFull
	}

	cluster, found := fs.findFreeCluster()
	if !found {
		return floppyos.ErrNoSpaceOnDevice
	}

	freeEntry.setName(padComponent(filename, direntNameLen))
	freeEntry.setExt(padComponent(ext, direntExtLen))
	freeEntry.setStartingCluster(cluster)
	freeEntry.setFileSize(disks.SectorSize)
	fs.setFATEntry(cluster, disks.EndOfChain)

	fs.currentFile.isOpened = false
	return fs.flushDirectoryAndFATs(&fs.currentDirectory)
}

// CloseFile writes the open file's staging region back to disk, extending
// the cluster chain as needed, truncating clusters the file no longer
// needs, and flushing the FATs and directory. The session ends whether or
// not a device write fails.
func (fs *FileSystem) CloseFile() error {
	if !fs.currentFile.isOpened {
		fs.say("Error: File was not opened!\n")
		return floppyos.ErrFileNotOpen
	}

	size := fs.currentFile.entry.fileSize()
	clustersNeeded := (size + disks.SectorSize - 1) / disks.SectorSize

	var result *multierror.Error

	cluster := fs.currentFile.entry.startingCluster()
	prevCluster := uint16(0)

	for i := uint32(0); i < clustersNeeded; i++ {
		if cluster == disks.FreeCluster || cluster == disks.EndOfChain {
			// Chain is shorter than the file; grab a free cluster and link
			// it onto the previous one.
			newCluster, found := fs.findFreeCluster()
			if !found {
				fs.currentFile.isOpened = false
				return floppyos.ErrNoSpaceOnDevice
			}
			fs.setFATEntry(newCluster, disks.EndOfChain)
			if prevCluster != disks.FreeCluster {
				fs.setFATEntry(prevCluster, newCluster)
			}
			cluster = newCluster
		}

		sector := uint(cluster) + disks.ClusterSectorOffset
		address := fs.currentFile.stagingAddress + i*disks.SectorSize
		err := fs.driver.WriteSectors(bootDrive, sector, address, disks.SectorSize)
		if err != nil {
			result = multierror.Append(result, err)
		}

		prevCluster = cluster
		cluster = fs.fatEntry(0, cluster)
	}

	// Free whatever used to hang off the end of the chain, then terminate
	// it at the last cluster the file still needs.
	steps := 0
	for cluster != disks.EndOfChain && cluster != disks.FreeCluster {
		next := fs.fatEntry(0, cluster)
		fs.setFATEntry(cluster, disks.FreeCluster)
		cluster = next

		if steps++; steps > maxChainSectors {
			break
		}
	}
	fs.setFATEntry(prevCluster, disks.EndOfChain)

	result = multierror.Append(result, fs.flushDirectoryAndFATs(&fs.currentDirectory))

	fs.currentFile.isOpened = false
	return result.ErrorOrNil()
}

// DeleteFile frees the open file's cluster chain, clears its directory
// entry, and flushes both to disk.
func (fs *FileSystem) DeleteFile() error {
	if !fs.currentFile.isOpened {
		fs.say("Error: File was not opened!\n")
		return floppyos.ErrFileNotOpen
	}

	cluster := fs.currentFile.entry.startingCluster()
	steps := 0
	for cluster != disks.EndOfChain && cluster != disks.FreeCluster {
		next := fs.fatEntry(0, cluster)
		fs.setFATEntry(cluster, disks.FreeCluster)
		cluster = next

		if steps++; steps > maxChainSectors {
			break
		}
	}

	fs.currentFile.entry.clear()

	fs.currentFile.isOpened = false
	return fs.flushDirectoryAndFATs(&fs.currentDirectory)
}

// RenameFile changes the open file's name in place and flushes the
// directory. The session ends.
func (fs *FileSystem) RenameFile(newFilename, newExt string) error {
	if !fs.currentFile.isOpened {
		fs.say("Error: File was not opened!\n")
		return floppyos.ErrFileNotOpen
	}

	fs.currentFile.entry.setName(padComponent(newFilename, direntNameLen))
	fs.currentFile.entry.setExt(padComponent(newExt, direntExtLen))

	fs.currentFile.isOpened = false
	return fs.flushDirectoryAndFATs(&fs.currentDirectory)
}

// MoveFile copies the open file's directory entry into the first free slot
// of the target directory and flushes that directory. The session ends.
func (fs *FileSystem) MoveFile(toDirectory *Directory) error {
	if !fs.currentFile.isOpened {
		fs.say("Error: File was not opened!\n")
		return floppyos.ErrFileNotOpen
	}

	target, found := fs.findFreeEntry(toDirectory)
	if found {
		target.copyFrom(fs.currentFile.entry)
	}

	fs.currentFile.isOpened = false
	return fs.flushDirectoryAndFATs(toDirectory)
}

// say prints a diagnostic to the kernel console, if one is attached.
func (fs *FileSystem) say(message string) {
	if fs.console != nil {
		fs.console.Printf(message)
	}
}
