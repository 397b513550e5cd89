// Package machine emulates the 16-bit-era PC hardware the kernel drives: a
// flat RAM, an I/O port bus, the interrupt controller's request lines, ISA
// DMA channel 2, the floppy disk controller, the text-mode video buffer, the
// PS/2 keyboard, and the CMOS drive-type register.
//
// Devices act synchronously inside the port access that triggers them, so a
// single goroutine observing the bus sees the same ordering the real
// single-CPU machine would.
package machine

import (
	"io"

	"github.com/dargueta/floppyos/disks"
	"github.com/xaionaro-go/bytesextra"
)

// RAMSize is the amount of physical memory installed, enough to cover the
// kernel staging regions and the video buffer.
const RAMSize = 0xC0000

// Machine is one assembled computer: RAM plus every device, wired to a
// floppy image in drive 0.
type Machine struct {
	RAM      []byte
	Bus      *PortBus
	IRQ      *IRQController
	DMA      *DMAController
	Floppy   *FDC
	Video    *Video
	Keyboard *Keyboard
	CMOS     *CMOS

	Geometry disks.DiskGeometry
}

// New assembles a machine around `disk`, the image in drive 0.
func New(disk io.ReadWriteSeeker, geometry disks.DiskGeometry) *Machine {
	ram := make([]byte, RAMSize)
	bus := NewPortBus()
	irq := NewIRQController()
	dma := NewDMAController()
	fdc := NewFDC(ram, dma, irq, disk, geometry)
	keyboard := NewKeyboard()
	cmos := NewCMOS(geometry.CMOSDriveType)

	bus.Claim(dma, dma.Ports()...)
	bus.Claim(fdc, fdc.Ports()...)
	bus.Claim(keyboard, keyboard.Ports()...)
	bus.Claim(cmos, cmos.Ports()...)

	return &Machine{
		RAM:      ram,
		Bus:      bus,
		IRQ:      irq,
		DMA:      dma,
		Floppy:   fdc,
		Video:    NewVideo(ram),
		Keyboard: keyboard,
		CMOS:     cmos,
		Geometry: geometry,
	}
}

// NewWithBlankDisk assembles a machine around an in-memory, freshly
// formatted 1.44 MB floppy image.
func NewWithBlankDisk() (*Machine, error) {
	geometry, err := disks.GetPredefinedDiskGeometry(disks.Slug144MB)
	if err != nil {
		return nil, err
	}

	image := make([]byte, geometry.TotalSizeBytes())
	stream := bytesextra.NewReadWriteSeeker(image)
	if err := disks.FormatFAT12Image(stream, geometry); err != nil {
		return nil, err
	}
	return New(stream, geometry), nil
}
