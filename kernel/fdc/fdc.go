// Package fdc drives the floppy disk controller: initialization and
// recalibration, drive selection, and DMA-coordinated sector reads and
// writes with bounded retry.
package fdc

import (
	floppyos "github.com/dargueta/floppyos"
	"github.com/dargueta/floppyos/disks"
	"github.com/dargueta/floppyos/kernel/dma"
	"github.com/dargueta/floppyos/kernel/ioport"
)

// Controller registers.
const (
	digitalOutputRegister        = 0x3F2
	mainStatusRegister           = 0x3F4
	dataFIFO                     = 0x3F5
	configurationControlRegister = 0x3F7
)

// Commands the driver issues. This subset of the full 82077AA command set
// is all this kernel ever needs.
const (
	cmdSpecify        = 3
	cmdWriteData      = 5
	cmdReadData       = 6
	cmdRecalibrate    = 7
	cmdSenseInterrupt = 8
	cmdVersion        = 16
	cmdConfigure      = 19
	cmdLock           = 20
)

// Option bits OR'd onto READ_DATA/WRITE_DATA.
const (
	bitMultiTrack = 0x80
	bitMFM        = 0x40
)

const floppyIRQ = 6

// pollLimit bounds every busy-wait on the RQM bit.
const pollLimit = 600

// maxAttempts is how many times a read or write is retried before the
// driver gives up on the sector.
const maxAttempts = 20

// DriveTypeNames maps the CMOS drive type nibble to a printable name.
var DriveTypeNames = [8]string{
	"none",
	"360kB 5.25\"",
	"1.2MB 5.25\"",
	"720kB 3.5\"",
	"1.44MB 3.5\"",
	"2.88MB 3.5\"",
	"unknown type",
	"unknown type",
}

// Driver is the floppy controller driver. It owns the controller registers,
// DMA channel 2, and IRQ 6; only one command is ever in flight.
type Driver struct {
	bus      ioport.Bus
	irq      ioport.IRQWaiter
	dma      *dma.Controller
	geometry disks.DiskGeometry
}

func NewDriver(
	bus ioport.Bus,
	irq ioport.IRQWaiter,
	dmac *dma.Controller,
	geometry disks.DiskGeometry,
) *Driver {
	return &Driver{bus: bus, irq: irq, dma: dmac, geometry: geometry}
}

// LBAToCHS converts a logical block address to cylinder, head, and sector
// for this driver's disk geometry.
func (d *Driver) LBAToCHS(lba uint) (cyl, head, sector uint) {
	return lbaToCHS(d.geometry, lba)
}

func lbaToCHS(geometry disks.DiskGeometry, lba uint) (cyl, head, sector uint) {
	perCylinder := geometry.SectorsPerCylinder()
	cyl = lba / perCylinder
	head = (lba % perCylinder) / geometry.SectorsPerTrack
	sector = (lba % geometry.SectorsPerTrack) + 1
	return cyl, head, sector
}

// DetectDriveType asks CMOS what kind of drive 0 is installed. If no drive
// is reported in the first slot it falls back to the second.
func (d *Driver) DetectDriveType() uint8 {
	d.bus.Out8(0x70, 0x10)
	drives := d.bus.In8(0x71)
	if drives>>4 == 0 {
		return drives & 0x0F
	}
	return drives >> 4
}

// Init brings the controller to a known state: verify it is an 82077AA,
// configure and lock its parameters, reset it, and recalibrate all four
// drive positions.
func (d *Driver) Init() error {
	if err := d.writeCommand(cmdVersion); err != nil {
		return err
	}
	version, err := d.readData()
	if err != nil {
		return err
	}
	if version != 0x90 {
		return floppyos.ErrControllerMissing.WithMessage(
			"VERSION did not answer 0x90")
	}

	// Implied seek on, FIFO on, drive polling off, threshold 8, no
	// precompensation.
	d.configure(true, true, false, 8)
	d.lock()
	d.reset(true)

	for drive := 0; drive < 4; drive++ {
		if err := d.recalibrate(uint8(drive)); err != nil {
			return err
		}
	}
	return nil
}

// ReadSectors reads `count` bytes starting at `lba` into RAM at `address`.
// Partial-sector counts transfer exactly that many bytes of the final
// sector.
func (d *Driver) ReadSectors(drive int, lba uint, address uint32, count uint) error {
	return d.transfer(drive, lba, address, count, false)
}

// WriteSectors writes `count` bytes from RAM at `address` to the disk
// starting at `lba`.
func (d *Driver) WriteSectors(drive int, lba uint, address uint32, count uint) error {
	return d.transfer(drive, lba, address, count, true)
}

func (d *Driver) transfer(drive int, lba uint, address uint32, count uint, writing bool) error {
	d.driveSelect(drive)

	cyl, head, sector := d.LBAToCHS(lba)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if writing {
			d.dma.PrepareWrite(address, count)
		} else {
			d.dma.PrepareRead(address, count)
		}

		command := uint8(cmdReadData)
		if writing {
			command = cmdWriteData
		}

		st0, st1, st2, err := d.readWriteCommand(drive, cyl, head, sector, command)
		if err != nil {
			return err
		}

		retry, fatal := decodeStatus(st0, st1, st2)
		if fatal {
			return floppyos.ErrNotWritable
		}
		if !retry {
			return nil
		}
	}

	return floppyos.ErrDeviceFailed
}

// readWriteCommand issues the nine-byte READ_DATA or WRITE_DATA command and
// collects the seven result bytes.
func (d *Driver) readWriteCommand(
	drive int,
	cyl, head, sector uint,
	command uint8,
) (st0, st1, st2 uint8, err error) {
	// End of track: one past the last sector number so a multi-sector
	// transfer can run to the end of the track.
	eot := uint8(d.geometry.SectorsPerTrack + 1)

	bytes := [9]uint8{
		bitMFM | bitMultiTrack | command,
		uint8(head<<2) | uint8(drive),
		uint8(cyl),
		uint8(head),
		uint8(sector),
		2, // sector size code for 512 bytes
		eot,
		0x1B, // GAP1 default length
		0xFF, // data length, unused with an explicit size code
	}
	for _, b := range bytes {
		if err = d.writeCommand(b); err != nil {
			return 0, 0, 0, err
		}
	}

	// Result phase: wait for RQM, then drain the seven status bytes.
	if err = d.pollReady(); err != nil {
		return 0, 0, 0, err
	}

	st0, _ = d.readData()
	st1, _ = d.readData()
	st2, _ = d.readData()
	d.readData() // ending cylinder
	d.readData() // ending head
	d.readData() // ending sector
	d.readData() // sector size code
	return st0, st1, st2, nil
}

// decodeStatus groups the controller's error bits. Everything the datasheet
// flags is retryable -- abnormal termination, overrun, CRC errors, missing
// address marks, bad or missing cylinder, drive not ready -- except the
// write-protect bit, which no retry will clear.
func decodeStatus(st0, st1, st2 uint8) (retry, fatal bool) {
	abnormalTermination := st0>>6 != 0
	driveNotReady := st0&0x08 != 0
	endOfCylinder := st1&0x80 != 0
	dataError := st1&0x20 != 0 || st2&0x20 != 0
	overrun := st1&0x10 != 0
	noData := st1&0x04 != 0
	missingAddressMark := (st1|st2)&0x01 != 0
	controlMark := st2&0x40 != 0
	wrongCylinder := st2&0x10 != 0
	badCylinder := st2&0x02 != 0
	scanFailed := st2&0x04 != 0

	retry = abnormalTermination || driveNotReady || endOfCylinder ||
		dataError || overrun || noData || missingAddressMark ||
		controlMark || wrongCylinder || badCylinder || scanFailed

	fatal = st1&0x02 != 0
	return retry, fatal
}

// driveSelect sets the data rate for the drive's format, issues SPECIFY, and
// turns on the selected drive's motor.
func (d *Driver) driveSelect(drive int) {
	d.bus.Out8(configurationControlRegister, d.geometry.DataRateCode)
	d.specify()

	dor := d.bus.In8(digitalOutputRegister)
	dor = (dor & 0x0C) | uint8(drive) | uint8(1<<(4+uint(drive)))
	d.bus.Out8(digitalOutputRegister, dor)
}

// specify programs conservative head timings. Nobody tunes floppy seek
// performance anymore; these are the safe values.
func (d *Driver) specify() {
	const srt = 8
	const hlt = 5
	const hut = 0

	d.writeCommand(cmdSpecify)
	d.writeCommand(srt<<4 | hut)
	d.writeCommand(hlt<<1 | 0)
}

func (d *Driver) configure(impliedSeek, fifo, polling bool, threshold uint8) {
	var seekBit, fifoBit, pollBit uint8
	if impliedSeek {
		seekBit = 1
	}
	if !fifo {
		fifoBit = 1
	}
	if !polling {
		pollBit = 1
	}

	d.writeCommand(cmdConfigure)
	d.writeCommand(0)
	d.writeCommand(seekBit<<6 | fifoBit<<5 | pollBit<<4 | (threshold - 1))
	d.writeCommand(0) // precompensation
}

func (d *Driver) lock() {
	d.writeCommand(bitMultiTrack | cmdLock)
	d.readData()
}

// reset pulses the controller through DOR. On any reset after the first,
// interrupts are live and the completion IRQ must be consumed.
func (d *Driver) reset(firstTime bool) {
	d.bus.Out8(digitalOutputRegister, 0)
	d.bus.Out8(digitalOutputRegister, 0x04|0x08)
	if !firstTime {
		d.irq.Wait(floppyIRQ)
	}
}

// recalibrate seeks a drive back to cylinder 0, retrying until the
// controller reports seek-end.
func (d *Driver) recalibrate(drive uint8) error {
	for {
		if err := d.writeCommand(cmdRecalibrate); err != nil {
			return err
		}
		if err := d.writeCommand(drive); err != nil {
			return err
		}

		d.irq.Wait(floppyIRQ)
		st0, _ := d.senseInterrupt()
		if st0&0x20 != 0 {
			return nil
		}
	}
}

// senseInterrupt acknowledges a completion IRQ and reports the status and
// present cylinder of the drive that raised it.
func (d *Driver) senseInterrupt() (st0, cyl uint8) {
	d.writeCommand(cmdSenseInterrupt)
	d.pollReady()
	st0, _ = d.readData()
	cyl, _ = d.readData()
	return st0, cyl
}

// writeCommand feeds one byte to the data FIFO once the controller asserts
// RQM.
func (d *Driver) writeCommand(value uint8) error {
	if err := d.pollReady(); err != nil {
		return err
	}
	d.bus.Out8(dataFIFO, value)
	return nil
}

// readData pulls one byte from the data FIFO once the controller asserts
// RQM.
func (d *Driver) readData() (uint8, error) {
	if err := d.pollReady(); err != nil {
		return 0, err
	}
	return d.bus.In8(dataFIFO), nil
}

func (d *Driver) pollReady() error {
	for i := 0; i < pollLimit; i++ {
		if d.bus.In8(mainStatusRegister)&0x80 != 0 {
			return nil
		}
	}
	return floppyos.ErrCommandTimeout
}
