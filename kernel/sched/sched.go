// Package sched implements the cooperative multitasking core: a fixed-size
// process table, a round-robin scheduler over the user processes, and the
// context-switch handoff between them and the kernel process.
//
// The kernel process acts as the dispatcher. Every user suspension point --
// Yield or Exit -- hands control back to the kernel, which picks the next
// ready user and switches to it on its own Yield. Control returns to the
// statement after a user's suspension point only when that user is next
// scheduled.
package sched

import (
	"runtime"

	floppyos "github.com/dargueta/floppyos"
)

// Table is the process table and scheduler state.
type Table struct {
	procs    [MaxProcs]*Proc
	nextSlot int
	running  *Proc
	next     *Proc
	prev     *Proc
	kernproc *Proc
}

func NewTable() *Table {
	return &Table{}
}

// StartKernel registers the calling goroutine as the kernel process, PID 0,
// marks it running, and invokes `entry` directly. It returns after `entry`
// returns.
func (t *Table) StartKernel(entry func()) error {
	if t.nextSlot >= MaxProcs {
		return floppyos.ErrProcessTableFull
	}

	kernel := &Proc{
		PID:    t.nextSlot,
		Kind:   KindKernel,
		Status: StatusRunning,
		entry:  entry,
		resume: make(chan struct{}),
	}
	t.procs[t.nextSlot] = kernel
	t.nextSlot++
	t.kernproc = kernel
	t.running = kernel

	entry()
	return nil
}

// CreateProc allocates the next process slot to a new ready user process
// that will execute `entry` when first scheduled. A process that returns
// from its entry function without calling Exit is terminated as if it had.
func (t *Table) CreateProc(entry func(), stackTop uint32) error {
	if t.nextSlot >= MaxProcs {
		return floppyos.ErrProcessTableFull
	}

	proc := &Proc{
		PID:      t.nextSlot,
		Kind:     KindUser,
		Status:   StatusReady,
		StackTop: stackTop,
		entry:    entry,
		resume:   make(chan struct{}),
	}
	t.procs[t.nextSlot] = proc
	t.nextSlot++
	t.next = proc

	go func() {
		<-proc.resume
		proc.entry()
		if proc.Status != StatusTerminated {
			proc.Status = StatusTerminated
			t.prev = proc
			t.switchTo(t.kernproc)
		}
	}()

	return nil
}

// ReadyProcessCount returns how many user processes are ready to run.
func (t *Table) ReadyProcessCount() int {
	count := 0
	for _, proc := range t.procs {
		if proc != nil && proc.Kind == KindUser && proc.Status == StatusReady {
			count++
		}
	}
	return count
}

// Schedule picks the next ready user process round-robin and records it as
// the upcoming switch target. The scan starts one past the calling user
// process, or one past the last dispatched user when the kernel is calling,
// and wraps once around the user slots. It returns the ready process count,
// or 0 if no user process is ready.
func (t *Table) Schedule() int {
	reference := 0
	if t.running != nil && t.running.Kind == KindUser {
		reference = t.running.PID
	} else if t.prev != nil {
		reference = t.prev.PID
	}

	for offset := 1; offset < MaxProcs; offset++ {
		slot := ((reference - 1 + offset) % (MaxProcs - 1)) + 1
		proc := t.procs[slot]
		if proc != nil && proc.Kind == KindUser && proc.Status == StatusReady {
			t.next = proc
			return t.ReadyProcessCount()
		}
	}
	return 0
}

// Yield suspends the caller. A user caller hands control to the kernel
// process and does not run again until scheduled; when it is, Yield returns
// with the caller marked running. A kernel caller dispatches the next ready
// user process, or returns immediately if there is none.
func (t *Table) Yield() {
	caller := t.running

	if caller.Kind == KindKernel {
		if t.Schedule() == 0 {
			return
		}
		caller.Status = StatusReady
		t.Schedule()
		target := t.next
		t.prev = target
		t.switchTo(target)
		t.waitFor(caller)
		return
	}

	caller.Status = StatusReady
	t.Schedule()
	t.switchTo(t.kernproc)
	t.waitFor(caller)
}

// Exit terminates the caller. A user caller never runs again; its goroutine
// is unwound after control passes to the kernel process.
func (t *Table) Exit() {
	caller := t.running
	caller.Status = StatusTerminated

	if caller.Kind != KindUser {
		return
	}

	t.prev = caller
	t.next = t.kernproc
	t.switchTo(t.kernproc)
	runtime.Goexit()
}

// Running returns the record of the process currently executing.
func (t *Table) Running() *Proc {
	return t.running
}

// Kernel returns the kernel's process record, PID 0.
func (t *Table) Kernel() *Proc {
	return t.kernproc
}

// Proc returns the record in `slot`, or nil if the slot was never allocated.
func (t *Table) Proc(slot int) *Proc {
	if slot < 0 || slot >= MaxProcs {
		return nil
	}
	return t.procs[slot]
}

// switchTo is the restore half of the context switch: `target` becomes the
// running process and its parked goroutine is released at its last
// suspension point.
func (t *Table) switchTo(target *Proc) {
	t.running = target
	if target.Status == StatusReady {
		target.Status = StatusRunning
	}
	target.resume <- struct{}{}
}

// waitFor is the save half: the caller parks until it is next scheduled.
// The handoff is atomic from the caller's perspective; the statement after
// the waitFor call cannot execute until another switch restores this
// process.
func (t *Table) waitFor(self *Proc) {
	<-self.resume
}
