package fat

import (
	"strings"

	"github.com/dargueta/floppyos/disks"
)

// EntryInfo is a snapshot of one in-use directory entry.
type EntryInfo struct {
	Name            string
	Ext             string
	StartingCluster uint16
	FileSize        uint32
}

// DisplayName joins the name and extension the way directory listings
// print them.
func (e EntryInfo) DisplayName() string {
	if e.Ext == "" {
		return e.Name
	}
	return e.Name + "." + e.Ext
}

// DirectoryEntries lists the in-use entries of the current directory.
func (fs *FileSystem) DirectoryEntries() []EntryInfo {
	entries := make([]EntryInfo, 0, disks.MaxRootDirEntries)
	for index := 0; index < disks.MaxRootDirEntries; index++ {
		entry := fs.entryAt(&fs.currentDirectory, index)
		if entry.isFree() {
			continue
		}
		entries = append(entries, EntryInfo{
			Name:            strings.TrimRight(string(entry.name()), " "),
			Ext:             strings.TrimRight(string(entry.ext()), " "),
			StartingCluster: entry.startingCluster(),
			FileSize:        entry.fileSize(),
		})
	}
	return entries
}
