// Package console is the text-mode display: a cursor and the character
// cells of the video buffer, written straight into RAM the way the CRT
// controller reads them.
package console

// Display geometry and the attribute byte every cell is written with.
const (
	VideoBase    = 0xB8000
	ScreenWidth  = 80
	ScreenHeight = 25
	TextColor    = 0x07 // light grey on black
)

// Console tracks the cursor and writes character cells.
type Console struct {
	ram       []byte
	cursorCol int
	cursorRow int
}

func New(ram []byte) *Console {
	return &Console{ram: ram}
}

// SetCursor places the cursor. Nothing is drawn; Putchar uses the position
// to find where to print next. A column past the right edge wraps to the
// next row, and a row past the bottom clamps to the last row.
func (c *Console) SetCursor(x, y int) {
	c.cursorCol = x
	c.cursorRow = y

	if c.cursorCol >= ScreenWidth {
		c.cursorRow += c.cursorCol / ScreenWidth
		c.cursorCol %= ScreenWidth
	}
	if c.cursorRow >= ScreenHeight {
		c.cursorRow = ScreenHeight - 1
		c.cursorCol = 0
	}
}

// Putchar writes one character at the cursor and advances it. A newline
// moves to the start of the next row.
func (c *Console) Putchar(character byte) byte {
	if character == '\n' {
		c.SetCursor(0, c.cursorRow+1)
		return character
	}

	pos := (c.cursorRow*ScreenWidth + c.cursorCol) * 2
	c.ram[VideoBase+pos] = character
	c.ram[VideoBase+pos+1] = TextColor
	c.SetCursor(c.cursorCol+1, c.cursorRow)
	return character
}

// Printf prints a string with Putchar and returns the number of characters
// written.
func (c *Console) Printf(s string) int {
	for i := 0; i < len(s); i++ {
		c.Putchar(s[i])
	}
	return len(s)
}

// PrintInt prints an unsigned integer in decimal and returns the number of
// digits written.
func (c *Console) PrintInt(n uint32) int {
	count := 0
	if n >= 10 {
		count = c.PrintInt(n / 10)
	}
	c.Putchar('0' + byte(n%10))
	return count + 1
}

// ClearScreen blanks every cell and homes the cursor.
func (c *Console) ClearScreen() {
	for i := 0; i < ScreenWidth*ScreenHeight; i++ {
		c.ram[VideoBase+i*2] = ' '
		c.ram[VideoBase+i*2+1] = TextColor
	}
	c.SetCursor(0, 0)
}
