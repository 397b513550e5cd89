package fat

import "encoding/binary"

// Raw directory entry layout, MS-DOS 8.3: the name is space padded, never
// NUL terminated.
const (
	direntNameOffset    = 0
	direntNameLen       = 8
	direntExtOffset     = 8
	direntExtLen        = 3
	direntAttrOffset    = 11
	direntClusterOffset = 26
	direntSizeOffset    = 28

	// DirentSize is the size of one raw directory entry in bytes.
	DirentSize = 32
)

// dirent is a view over one 32-byte directory entry in a staging buffer.
// Mutations through it land directly in the buffer that gets flushed to
// disk.
type dirent struct {
	raw []byte
}

func (d dirent) isFree() bool {
	return d.raw[direntNameOffset] == 0
}

func (d dirent) name() []byte {
	return d.raw[direntNameOffset : direntNameOffset+direntNameLen]
}

func (d dirent) ext() []byte {
	return d.raw[direntExtOffset : direntExtOffset+direntExtLen]
}

func (d dirent) setName(name []byte) {
	copy(d.name(), name)
}

func (d dirent) setExt(ext []byte) {
	copy(d.ext(), ext)
}

func (d dirent) startingCluster() uint16 {
	return binary.LittleEndian.Uint16(d.raw[direntClusterOffset:])
}

func (d dirent) setStartingCluster(cluster uint16) {
	binary.LittleEndian.PutUint16(d.raw[direntClusterOffset:], cluster)
}

func (d dirent) fileSize() uint32 {
	return binary.LittleEndian.Uint32(d.raw[direntSizeOffset:])
}

func (d dirent) setFileSize(size uint32) {
	binary.LittleEndian.PutUint32(d.raw[direntSizeOffset:], size)
}

func (d dirent) clear() {
	d.raw[direntNameOffset] = 0
}

func (d dirent) copyFrom(other dirent) {
	copy(d.raw, other.raw)
}

// matches compares a space-padded name and extension against this entry,
// byte for byte across all eleven characters.
func (d dirent) matches(name, ext []byte) bool {
	for i := 0; i < direntNameLen; i++ {
		if d.raw[direntNameOffset+i] != name[i] {
			return false
		}
	}
	for i := 0; i < direntExtLen; i++ {
		if d.raw[direntExtOffset+i] != ext[i] {
			return false
		}
	}
	return true
}

// padComponent converts a caller-supplied name component into its on-disk
// form: `width` bytes where everything from the first NUL onward becomes a
// space. The first byte is taken as-is, matching the lookup convention for
// free entries.
func padComponent(component string, width int) []byte {
	padded := make([]byte, width)
	copy(padded, component)

	nulFound := false
	for i := 1; i < width; i++ {
		if padded[i] == 0 {
			nulFound = true
		}
		if nulFound {
			padded[i] = ' '
		}
	}
	return padded
}
