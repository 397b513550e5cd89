// Package kernel assembles the cores into a bootable system and owns the
// boot sequence: console up, keymap installed, interrupt delivery wired,
// then the kernel process started.
package kernel

import (
	"github.com/dargueta/floppyos/kernel/console"
	"github.com/dargueta/floppyos/kernel/dma"
	"github.com/dargueta/floppyos/kernel/fat"
	"github.com/dargueta/floppyos/kernel/fdc"
	"github.com/dargueta/floppyos/kernel/keyboard"
	"github.com/dargueta/floppyos/kernel/sched"
	"github.com/dargueta/floppyos/machine"
)

// Kernel is one booted instance: the machine it runs on and the subsystems
// layered over it.
type Kernel struct {
	Machine  *machine.Machine
	Console  *console.Console
	Keyboard *keyboard.Keyboard
	Procs    *sched.Table
	Floppy   *fdc.Driver
	FS       *fat.FileSystem
}

// New wires a kernel to a machine. The trap and IRQ hooks the original
// interrupt tables provided are standing wires here: the floppy ISR is the
// machine latching IRQ 6, and the context-switch trap is the scheduler's
// handoff.
func New(m *machine.Machine) *Kernel {
	con := console.New(m.RAM)
	dmac := dma.NewController(m.Bus)
	floppy := fdc.NewDriver(m.Bus, m.IRQ, dmac, m.Geometry)

	return &Kernel{
		Machine:  m,
		Console:  con,
		Keyboard: keyboard.New(m.Bus, con),
		Procs:    sched.NewTable(),
		Floppy:   floppy,
		FS:       fat.New(m.RAM, floppy, con),
	}
}

// Boot runs the boot sequence and enters `entry` as the kernel process.
// It returns when the kernel process body returns.
func (k *Kernel) Boot(entry func()) error {
	k.Console.ClearScreen()
	k.Keyboard.InitKeymap()
	return k.Procs.StartKernel(entry)
}

// MountFloppy initializes the floppy controller and mounts the FAT12 file
// system from drive 0.
func (k *Kernel) MountFloppy() error {
	if err := k.Floppy.Init(); err != nil {
		return err
	}
	return k.FS.InitFS()
}
