package machine

import "strings"

// Text-mode video geometry. The buffer lives in system RAM at VideoBase;
// every character cell is a glyph byte followed by an attribute byte.
const (
	VideoBase    = 0xB8000
	ScreenWidth  = 80
	ScreenHeight = 25
)

// Video gives test and host code a readable view of the text buffer. The
// kernel console writes to it through RAM, exactly as it would on hardware.
type Video struct {
	ram []byte
}

func NewVideo(ram []byte) *Video {
	return &Video{ram: ram}
}

// Cell returns the glyph at screen position (x, y).
func (v *Video) Cell(x, y int) byte {
	return v.ram[VideoBase+(y*ScreenWidth+x)*2]
}

// Row returns row `y` as a string with trailing blanks removed.
func (v *Video) Row(y int) string {
	var builder strings.Builder
	for x := 0; x < ScreenWidth; x++ {
		builder.WriteByte(v.Cell(x, y))
	}
	return strings.TrimRight(builder.String(), " \x00")
}

// Screen returns all rows up to the last non-empty one, joined by newlines.
func (v *Video) Screen() string {
	lastUsed := -1
	rows := make([]string, ScreenHeight)
	for y := 0; y < ScreenHeight; y++ {
		rows[y] = v.Row(y)
		if rows[y] != "" {
			lastUsed = y
		}
	}
	return strings.Join(rows[:lastUsed+1], "\n")
}
