package fat

import (
	"encoding/binary"
	"testing"

	floppyos "github.com/dargueta/floppyos"
	"github.com/dargueta/floppyos/disks"
	"github.com/dargueta/floppyos/kernel/dma"
	"github.com/dargueta/floppyos/kernel/fdc"
	"github.com/dargueta/floppyos/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mountedFS(t *testing.T) (*FileSystem, *machine.Machine) {
	m, err := machine.NewWithBlankDisk()
	require.NoError(t, err)

	driver := fdc.NewDriver(m.Bus, m.IRQ, dma.NewController(m.Bus), m.Geometry)
	require.NoError(t, driver.Init())

	fs := New(m.RAM, driver, nil)
	require.NoError(t, fs.InitFS())
	return fs, m
}

// ramFATEntry reads a slot from a FAT staging region directly, bypassing
// the mirror-updating helpers.
func ramFATEntry(fs *FileSystem, copyIndex int, cluster uint16) uint16 {
	return fs.fatEntry(copyIndex, cluster)
}

func corruptFAT1(fs *FileSystem, cluster uint16, value uint16) {
	binary.LittleEndian.PutUint16(fs.ram[FAT1Address+uint32(cluster)*2:], value)
}

func TestInitFSOpensRoot(t *testing.T) {
	fs, _ := mountedFS(t)

	assert.True(t, fs.currentDirectory.isOpened)
	assert.Equal(t, []byte("ROOT    "), fs.currentDirectory.entry.name())
	assert.False(t, fs.currentFile.isOpened)
	assert.Empty(t, fs.DirectoryEntries())
}

func TestOpenMissingFile(t *testing.T) {
	fs, _ := mountedFS(t)
	assert.ErrorIs(t, fs.OpenFile("NOPE", "TXT"), floppyos.ErrFileNotFound)
}

func TestCreateOpenClose(t *testing.T) {
	fs, _ := mountedFS(t)

	require.NoError(t, fs.CreateFile("HELLO", "TXT"))

	entries := fs.DirectoryEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "HELLO.TXT", entries[0].DisplayName())
	assert.EqualValues(t, 2, entries[0].StartingCluster)
	assert.EqualValues(t, 512, entries[0].FileSize)

	require.NoError(t, fs.OpenFile("HELLO", "TXT"))
	assert.ErrorIs(t, fs.OpenFile("HELLO", "TXT"), floppyos.ErrFileAlreadyOpen)
	require.NoError(t, fs.CloseFile())
}

// TestWriteReadRoundTrip is the full session round trip: 600 bytes span two
// clusters, survive a close, and read back intact.
func TestWriteReadRoundTrip(t *testing.T) {
	fs, _ := mountedFS(t)

	require.NoError(t, fs.CreateFile("HELLO", "TXT"))
	require.NoError(t, fs.OpenFile("HELLO", "TXT"))
	require.NoError(t, fs.WriteBytes('x', 600))
	require.NoError(t, fs.CloseFile())

	require.NoError(t, fs.OpenFile("HELLO", "TXT"))

	size, err := fs.FileSize()
	require.NoError(t, err)
	assert.EqualValues(t, 600, size)

	first, err := fs.ReadByte(0)
	require.NoError(t, err)
	assert.EqualValues(t, 'x', first)

	last, err := fs.ReadByte(599)
	require.NoError(t, err)
	assert.EqualValues(t, 'x', last)

	_, err = fs.ReadByte(600)
	assert.ErrorIs(t, err, floppyos.ErrEndOfFile)

	// Exactly one directory entry, and its chain is two clusters ending in
	// the end-of-chain marker.
	entries := fs.DirectoryEntries()
	require.Len(t, entries, 1)

	start := entries[0].StartingCluster
	second := ramFATEntry(fs, 0, start)
	assert.NotEqualValues(t, disks.EndOfChain, second)
	assert.EqualValues(t, disks.EndOfChain, ramFATEntry(fs, 0, second))
	require.NoError(t, fs.CloseFile())
}

func TestChainMirroredAfterClose(t *testing.T) {
	fs, _ := mountedFS(t)

	require.NoError(t, fs.CreateFile("BIG", "BIN"))
	require.NoError(t, fs.OpenFile("BIG", "BIN"))
	require.NoError(t, fs.WriteBytes(0xAB, 5*512))
	require.NoError(t, fs.CloseFile())

	require.NoError(t, fs.OpenFile("BIG", "BIN"))

	// Walk the chain: ceil(2560/512) = 5 links, every step mirrored.
	cluster := fs.currentFile.entry.startingCluster()
	links := 0
	for cluster != disks.EndOfChain {
		assert.Equal(t, ramFATEntry(fs, 0, cluster), ramFATEntry(fs, 1, cluster))
		cluster = ramFATEntry(fs, 0, cluster)
		links++
	}
	assert.Equal(t, 5, links)
	require.NoError(t, fs.CloseFile())
}

func TestCloseTruncatesShrunkenChain(t *testing.T) {
	fs, _ := mountedFS(t)

	require.NoError(t, fs.CreateFile("SHRNK", "BIN"))
	require.NoError(t, fs.OpenFile("SHRNK", "BIN"))
	require.NoError(t, fs.WriteBytes(1, 4*512))
	require.NoError(t, fs.CloseFile())

	// Rewrite the size down to one cluster and close again; the other
	// three clusters must come free.
	require.NoError(t, fs.OpenFile("SHRNK", "BIN"))
	fs.currentFile.entry.setFileSize(100)
	require.NoError(t, fs.CloseFile())

	require.NoError(t, fs.OpenFile("SHRNK", "BIN"))
	start := fs.currentFile.entry.startingCluster()
	assert.EqualValues(t, disks.EndOfChain, ramFATEntry(fs, 0, start))
	require.NoError(t, fs.CloseFile())

	// Allocating again reuses the freed clusters right after the first.
	require.NoError(t, fs.CreateFile("OTHER", "BIN"))
	entries := fs.DirectoryEntries()
	assert.EqualValues(t, start+1, entries[1].StartingCluster)
}

func TestDeleteThenOpenFails(t *testing.T) {
	fs, _ := mountedFS(t)

	require.NoError(t, fs.CreateFile("DOOMED", "TXT"))
	require.NoError(t, fs.OpenFile("DOOMED", "TXT"))

	start := fs.currentFile.entry.startingCluster()
	require.NoError(t, fs.DeleteFile())

	assert.EqualValues(t, disks.FreeCluster, ramFATEntry(fs, 0, start))
	assert.EqualValues(t, disks.FreeCluster, ramFATEntry(fs, 1, start))
	assert.ErrorIs(t, fs.OpenFile("DOOMED", "TXT"), floppyos.ErrFileNotFound)
}

func TestDirectoryFillsAtSixteenEntries(t *testing.T) {
	fs, _ := mountedFS(t)

	names := [16]string{
		"F0", "F1", "F2", "F3", "F4", "F5", "F6", "F7",
		"F8", "F9", "F10", "F11", "F12", "F13", "F14", "F15",
	}
	for _, name := range names {
		require.NoError(t, fs.CreateFile(name, "TXT"))
	}

	assert.ErrorIs(t, fs.CreateFile("F16", "TXT"), floppyos.ErrDirectoryFull)
	assert.Len(t, fs.DirectoryEntries(), 16)
}

// TestFATMismatchRefusesOpen corrupts one byte of the second FAT copy on
// the file's chain; the open must fail without touching the staging region.
func TestFATMismatchRefusesOpen(t *testing.T) {
	fs, _ := mountedFS(t)

	require.NoError(t, fs.CreateFile("HELLO", "TXT"))
	require.NoError(t, fs.OpenFile("HELLO", "TXT"))
	require.NoError(t, fs.WriteBytes('x', 600))
	require.NoError(t, fs.CloseFile())

	start := fs.DirectoryEntries()[0].StartingCluster
	corruptFAT1(fs, start, ramFATEntry(fs, 0, start)+1)

	// Scribble a sentinel into the staging region so we can tell whether
	// the failed open wrote anything.
	fs.ram[FileAddress] = 0xEE

	assert.ErrorIs(t, fs.OpenFile("HELLO", "TXT"), floppyos.ErrFATMismatch)
	assert.EqualValues(t, 0xEE, fs.ram[FileAddress], "staging region was written")
	assert.False(t, fs.currentFile.isOpened)
}

// TestRunawayChainRefusesOpen loops a cluster onto itself, consistently in
// both copies, so the chain never terminates.
func TestRunawayChainRefusesOpen(t *testing.T) {
	fs, _ := mountedFS(t)

	require.NoError(t, fs.CreateFile("LOOP", "BIN"))
	start := fs.DirectoryEntries()[0].StartingCluster
	fs.setFATEntry(start, start)

	assert.ErrorIs(t, fs.OpenFile("LOOP", "BIN"), floppyos.ErrChainTooLong)
}

func TestReadWriteRequireOpenFile(t *testing.T) {
	fs, _ := mountedFS(t)

	_, err := fs.ReadByte(0)
	assert.ErrorIs(t, err, floppyos.ErrFileNotOpen)
	assert.ErrorIs(t, fs.WriteByte(1, 0), floppyos.ErrFileNotOpen)
	assert.ErrorIs(t, fs.CloseFile(), floppyos.ErrFileNotOpen)
	assert.ErrorIs(t, fs.DeleteFile(), floppyos.ErrFileNotOpen)
	assert.ErrorIs(t, fs.RenameFile("X", "Y"), floppyos.ErrFileNotOpen)
	assert.ErrorIs(t, fs.MoveFile(fs.CurrentDirectory()), floppyos.ErrFileNotOpen)
}

func TestCursorReads(t *testing.T) {
	fs, _ := mountedFS(t)

	require.NoError(t, fs.CreateFile("SEQ", "BIN"))
	require.NoError(t, fs.OpenFile("SEQ", "BIN"))
	for i := 0; i < 4; i++ {
		require.NoError(t, fs.WriteNextByte(byte('a'+i)))
	}
	require.NoError(t, fs.CloseFile())

	require.NoError(t, fs.OpenFile("SEQ", "BIN"))
	for i := 0; i < 4; i++ {
		b, err := fs.ReadNextByte()
		require.NoError(t, err)
		assert.EqualValues(t, byte('a'+i), b)
	}
	require.NoError(t, fs.CloseFile())
}

func TestRenameFile(t *testing.T) {
	fs, _ := mountedFS(t)

	require.NoError(t, fs.CreateFile("OLD", "TXT"))
	require.NoError(t, fs.OpenFile("OLD", "TXT"))
	require.NoError(t, fs.RenameFile("NEW", "DAT"))

	assert.ErrorIs(t, fs.OpenFile("OLD", "TXT"), floppyos.ErrFileNotFound)
	require.NoError(t, fs.OpenFile("NEW", "DAT"))
	require.NoError(t, fs.CloseFile())
}

func TestMoveFileCopiesEntry(t *testing.T) {
	fs, _ := mountedFS(t)

	require.NoError(t, fs.CreateFile("ROAM", "TXT"))
	require.NoError(t, fs.OpenFile("ROAM", "TXT"))
	require.NoError(t, fs.MoveFile(fs.CurrentDirectory()))

	// Moving within the root copies the entry into the next free slot; the
	// original entry is left in place.
	entries := fs.DirectoryEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].StartingCluster, entries[1].StartingCluster)
}

// TestFlushDurability reopens the whole stack on the same image and expects
// the file written before the remount to still be there.
func TestFlushDurability(t *testing.T) {
	m, err := machine.NewWithBlankDisk()
	require.NoError(t, err)

	driver := fdc.NewDriver(m.Bus, m.IRQ, dma.NewController(m.Bus), m.Geometry)
	require.NoError(t, driver.Init())
	fs := New(m.RAM, driver, nil)
	require.NoError(t, fs.InitFS())

	require.NoError(t, fs.CreateFile("KEEP", "TXT"))
	require.NoError(t, fs.OpenFile("KEEP", "TXT"))
	require.NoError(t, fs.WriteBytes('k', 10))
	require.NoError(t, fs.CloseFile())

	// Fresh staging state, same disk.
	fs2 := New(m.RAM, driver, nil)
	require.NoError(t, fs2.InitFS())
	require.NoError(t, fs2.OpenFile("KEEP", "TXT"))
	b, err := fs2.ReadByte(0)
	require.NoError(t, err)
	assert.EqualValues(t, 'k', b)
}
