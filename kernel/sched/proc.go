package sched

// MaxProcs is the size of the process table, including the kernel's slot.
const MaxProcs = 16

// Kind tells the scheduler whether a process record belongs to the kernel or
// to user code.
type Kind int

const (
	KindKernel Kind = iota
	KindUser
)

// Status is a process's lifecycle state. Terminated records never leave that
// state and their slots are never reused.
type Status int

const (
	StatusReady Status = iota
	StatusRunning
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "READY"
	case StatusRunning:
		return "RUNNING"
	case StatusTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Proc is one process table record. The goroutine parked on `resume` is the
// saved execution context: handing it a token is the restore half of a
// context switch, and parking on it again is the save half.
type Proc struct {
	PID    int
	Kind   Kind
	Status Status

	// StackTop is the stack address the process was created with. The
	// emulated processes run on goroutine stacks, so it is bookkeeping only,
	// but creation still assigns distinct regions the way the boot loader's
	// memory map expects.
	StackTop uint32

	entry  func()
	resume chan struct{}
}
