// Package dma programs ISA DMA channel 2 for floppy transfers.
package dma

import "github.com/dargueta/floppyos/kernel/ioport"

// Channel 2 programming ports on the first 8237.
const (
	addrPort     = 0x04
	countPort    = 0x05
	maskPort     = 0x0A
	modePort     = 0x0B
	flipFlopPort = 0x0C
	pagePort     = 0x81
)

// Mode bytes: single transfer, address increment, channel 2. Reading a
// sector moves bytes into memory; writing a sector moves them out.
const (
	modeReadSector  = 0x46
	modeWriteSector = 0x4A
)

// Controller programs the floppy DMA channel through the port bus.
type Controller struct {
	bus ioport.Bus
}

func NewController(bus ioport.Bus) *Controller {
	return &Controller{bus: bus}
}

// PrepareRead programs channel 2 to move `count` bytes from the floppy
// controller into RAM at the 24-bit physical address `addr`.
func (c *Controller) PrepareRead(addr uint32, count uint) {
	c.program(addr, count, modeReadSector)
}

// PrepareWrite programs channel 2 to move `count` bytes from RAM at `addr`
// out to the floppy controller.
func (c *Controller) PrepareWrite(addr uint32, count uint) {
	c.program(addr, count, modeWriteSector)
}

func (c *Controller) program(addr uint32, count uint, mode uint8) {
	// Mask the channel while reprogramming it.
	c.bus.Out8(maskPort, 0x04|0x02)

	// Base address: low byte, high byte, then the page register for the top
	// eight bits.
	c.bus.Out8(flipFlopPort, 0xFF)
	c.bus.Out8(addrPort, uint8(addr))
	c.bus.Out8(addrPort, uint8(addr>>8))
	c.bus.Out8(pagePort, uint8(addr>>16))

	// Count register holds the transfer length minus one.
	c.bus.Out8(flipFlopPort, 0xFF)
	c.bus.Out8(countPort, uint8(count-1))
	c.bus.Out8(countPort, uint8((count-1)>>8))

	c.bus.Out8(modePort, mode)

	// Unmask and let the controller run the transfer.
	c.bus.Out8(maskPort, 0x02)
}
