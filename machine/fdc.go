package machine

import (
	"io"

	"github.com/dargueta/floppyos/disks"
)

// Floppy controller ports.
const (
	FDCDigitalOutputPort = 0x3F2
	FDCMainStatusPort    = 0x3F4
	FDCDataFIFOPort      = 0x3F5
	FDCControlPort       = 0x3F7
)

// FDCIRQLine is the interrupt line the controller raises on command
// completion and reset.
const FDCIRQLine = 6

// MSR bits.
const (
	msrActiveA     = 0x01
	msrBusy        = 0x10
	msrNonDMA      = 0x20
	msrDirToHost   = 0x40
	msrRequestMain = 0x80
)

// DOR bits.
const (
	dorNotReset  = 0x04
	dorIRQEnable = 0x08
)

// Command opcodes, after stripping the MT/MFM/SK option bits.
const (
	cmdReadData       = 6
	cmdWriteData      = 5
	cmdRecalibrate    = 7
	cmdSenseInterrupt = 8
	cmdSpecify        = 3
	cmdVersion        = 16
	cmdConfigure      = 19
	cmdLock           = 20
)

// controllerVersion is the reply to VERSION for the 82077AA the kernel
// expects to find.
const controllerVersion = 0x90

type fdcPhase int

const (
	phaseIdle fdcPhase = iota
	phaseCommand
	phaseResult
)

// StatusFault describes status register bits the controller should report
// instead of executing transfers, used to exercise the driver's retry path.
type StatusFault struct {
	ST0, ST1, ST2 uint8
	// Operations is how many READ/WRITE commands report the fault before the
	// controller goes back to behaving.
	Operations int
}

// FDC emulates the floppy disk controller: the command FIFO protocol behind
// MSR/DOR/CCR, seek state per drive, and DMA-coordinated sector transfers
// against a disk image.
type FDC struct {
	ram      []byte
	dma      *DMAController
	irq      *IRQController
	disk     io.ReadWriteSeeker
	geometry disks.DiskGeometry

	dor      uint8
	dataRate uint8
	locked   bool
	phase    fdcPhase

	command    uint8
	params     []byte
	paramsNeed int
	results    []byte

	cylinder [4]uint8
	st0      uint8

	fault StatusFault
}

// NewFDC wires a controller to system RAM, the DMA controller, the interrupt
// controller, and a disk image in drive 0.
func NewFDC(
	ram []byte,
	dma *DMAController,
	irq *IRQController,
	disk io.ReadWriteSeeker,
	geometry disks.DiskGeometry,
) *FDC {
	return &FDC{
		ram:      ram,
		dma:      dma,
		irq:      irq,
		disk:     disk,
		geometry: geometry,
		// The BIOS leaves the controller out of reset with interrupts
		// enabled before handing over to the kernel.
		dor: dorNotReset | dorIRQEnable,
	}
}

// Ports returns every port this controller claims on the bus.
func (f *FDC) Ports() []uint16 {
	return []uint16{
		FDCDigitalOutputPort,
		FDCMainStatusPort,
		FDCDataFIFOPort,
		FDCControlPort,
	}
}

// InjectFault makes the next `fault.Operations` read/write commands complete
// with the given status bytes and no data transfer.
func (f *FDC) InjectFault(fault StatusFault) {
	f.fault = fault
}

func (f *FDC) In8(port uint16) uint8 {
	switch port {
	case FDCMainStatusPort:
		return f.statusByte()
	case FDCDataFIFOPort:
		return f.readFIFO()
	case FDCDigitalOutputPort:
		return f.dor
	}
	return 0xFF
}

func (f *FDC) Out8(port uint16, value uint8) {
	switch port {
	case FDCDigitalOutputPort:
		previous := f.dor
		f.dor = value
		if previous&dorNotReset == 0 && value&dorNotReset != 0 {
			// Leaving reset. Controller parameters survive if LOCK was
			// issued; either way the host gets an interrupt.
			f.phase = phaseIdle
			f.params = nil
			f.results = nil
			if value&dorIRQEnable != 0 {
				f.irq.Raise(FDCIRQLine)
			}
		}
	case FDCControlPort:
		f.dataRate = value & 0x03
	case FDCDataFIFOPort:
		f.writeFIFO(value)
	}
}

// statusByte builds the MSR. RQM is always set outside an active transfer
// because the emulated FIFO never stalls; DIO points host-ward only during
// the result phase.
func (f *FDC) statusByte() uint8 {
	if f.dor&dorNotReset == 0 {
		return 0
	}
	status := uint8(msrRequestMain)
	if f.phase == phaseResult {
		status |= msrDirToHost | msrBusy
	}
	if f.phase == phaseCommand {
		status |= msrBusy
	}
	return status
}

func (f *FDC) readFIFO() uint8 {
	if f.phase != phaseResult || len(f.results) == 0 {
		return 0
	}
	value := f.results[0]
	f.results = f.results[1:]
	if len(f.results) == 0 {
		f.phase = phaseIdle
	}
	return value
}

func (f *FDC) writeFIFO(value uint8) {
	if f.dor&dorNotReset == 0 {
		return
	}

	if f.phase == phaseCommand {
		f.params = append(f.params, value)
		if len(f.params) == f.paramsNeed {
			f.execute()
		}
		return
	}

	// First byte of a new command.
	f.command = value
	f.params = nil

	switch value & 0x1F {
	case cmdVersion:
		f.results = []byte{controllerVersion}
		f.phase = phaseResult
	case cmdSenseInterrupt:
		f.results = []byte{f.st0, f.cylinder[f.st0&0x03]}
		f.phase = phaseResult
	case cmdLock:
		f.locked = value&0x80 != 0
		var lockBit uint8
		if f.locked {
			lockBit = 0x10
		}
		f.results = []byte{lockBit}
		f.phase = phaseResult
	case cmdConfigure:
		f.beginCommand(3)
	case cmdSpecify:
		f.beginCommand(2)
	case cmdRecalibrate:
		f.beginCommand(1)
	case cmdReadData, cmdWriteData:
		f.beginCommand(8)
	default:
		// Unknown command: a real controller reports 0x80 in a one-byte
		// result phase.
		f.results = []byte{0x80}
		f.phase = phaseResult
	}
}

func (f *FDC) beginCommand(paramCount int) {
	f.paramsNeed = paramCount
	f.phase = phaseCommand
}

func (f *FDC) execute() {
	defer func() {
		if f.phase == phaseCommand {
			f.phase = phaseIdle
		}
	}()

	switch f.command & 0x1F {
	case cmdConfigure, cmdSpecify:
		// Parameters accepted and ignored; the emulated mechanics have no
		// step timings to tune.
		f.phase = phaseIdle
	case cmdRecalibrate:
		drive := f.params[0] & 0x03
		f.cylinder[drive] = 0
		f.st0 = 0x20 | drive
		f.phase = phaseIdle
		f.irq.Raise(FDCIRQLine)
	case cmdReadData:
		f.transfer(true)
	case cmdWriteData:
		f.transfer(false)
	}
}

// transfer runs a READ_DATA or WRITE_DATA command against the disk image
// through the programmed DMA channel, then enters the result phase.
func (f *FDC) transfer(toMemory bool) {
	drive := f.params[0] & 0x03
	cyl := uint(f.params[1])
	head := uint(f.params[2])
	sector := uint(f.params[3])
	f.cylinder[drive] = uint8(cyl)

	if f.fault.Operations > 0 {
		f.fault.Operations--
		f.finishTransfer(f.fault.ST0|drive, f.fault.ST1, f.fault.ST2, cyl, head, sector)
		return
	}

	st0 := drive | (uint8(head) << 2)
	var st1, st2 uint8

	switch {
	case f.dma.Masked():
		// Nothing to move bytes with; the operation times out at the
		// mechanism level and reports abnormal termination.
		st0 |= 0x40
		st1 |= 0x04
	case f.dma.TransferToMemory() != toMemory:
		st0 |= 0x40
		st1 |= 0x04
	case sector < 1 || sector > f.geometry.SectorsPerTrack ||
		cyl >= f.geometry.Cylinders || head >= f.geometry.Heads:
		st0 |= 0x40
		st1 |= 0x04 // no data: sector not found
	default:
		lba := (cyl*f.geometry.Heads+head)*f.geometry.SectorsPerTrack + (sector - 1)
		if err := f.moveBytes(lba, toMemory); err != nil {
			st0 |= 0x40
			st1 |= 0x20 // data error
		}
	}

	f.finishTransfer(st0, st1, st2, cyl, head, sector)
}

func (f *FDC) moveBytes(lba uint, toMemory bool) error {
	address := f.dma.TargetAddress()
	count := f.dma.TransferBytes()
	if uint(address)+count > uint(len(f.ram)) {
		return io.ErrShortWrite
	}

	offset := int64(lba) * int64(f.geometry.BytesPerSector)
	if _, err := f.disk.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	window := f.ram[address : uint(address)+count]
	if toMemory {
		_, err := io.ReadFull(f.disk, window)
		return err
	}
	_, err := f.disk.Write(window)
	return err
}

func (f *FDC) finishTransfer(st0, st1, st2 uint8, cyl, head, sector uint) {
	f.st0 = st0
	f.results = []byte{
		st0,
		st1,
		st2,
		uint8(cyl),
		uint8(head),
		uint8(sector),
		2, // 512-byte sector size code
	}
	f.phase = phaseResult
	f.irq.Raise(FDCIRQLine)
}
