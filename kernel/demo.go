package kernel

// User process stacks for the demo processes, spaced the way the boot
// loader's memory map lays them out.
const (
	demoStack0 = 0x10000
	demoStack1 = 0x11000
	demoStack2 = 0x12000
	demoStack3 = 0x13000
	demoStack4 = 0x14000
)

// ProcessTraceDemo is the narrated multitasking demo: four user processes
// that print their lifecycle, interleaved with the kernel process. Pass the
// returned entry to Boot.
func (k *Kernel) ProcessTraceDemo() func() {
	procs := k.Procs
	con := k.Console

	procA := func() {
		con.Printf("User Process A Start\n")
		procs.Exit()
	}
	procB := func() {
		con.Printf("User Process B Start\n")
		procs.Yield()
		con.Printf("User Process B Resumed 1st\n")
		procs.Exit()
	}
	procC := func() {
		con.Printf("User Process C Start\n")
		procs.Yield()
		con.Printf("User Process C Resumed 1st\n")
		procs.Yield()
		con.Printf("User Process C Resumed 2nd\n")
		procs.Exit()
	}
	procD := func() {
		con.Printf("User Process D Start\n")
		procs.Yield()
		con.Printf("User Process D Resumed 1st\n")
		procs.Yield()
		con.Printf("User Process D Resumed 2nd\n")
		procs.Yield()
		con.Printf("User Process D Resumed 3rd\n")
		procs.Exit()
	}

	return func() {
		procs.CreateProc(procA, demoStack0)
		procs.CreateProc(procB, demoStack1)
		procs.CreateProc(procC, demoStack2)
		procs.CreateProc(procD, demoStack3)

		userprocs := procs.ReadyProcessCount()

		con.Printf("Kernel Process Started\n")

		for userprocs > 0 {
			procs.Yield()
			con.Printf("Kernel Process Resumed\n")
			userprocs = procs.ReadyProcessCount()
		}

		con.Printf("Kernel Process Terminated\n")
	}
}

// RoundRobinDemo is the terse fairness demo: five user processes that each
// print their letter every time they run, with no kernel chatter between
// turns.
func (k *Kernel) RoundRobinDemo() func() {
	procs := k.Procs
	con := k.Console

	letter := func(name string, yields int) func() {
		return func() {
			con.Printf(name)
			for i := 0; i < yields; i++ {
				procs.Yield()
				con.Printf(name)
			}
			procs.Exit()
		}
	}

	return func() {
		procs.CreateProc(letter("A", 0), demoStack0)
		procs.CreateProc(letter("B", 1), demoStack1)
		procs.CreateProc(letter("C", 3), demoStack2)
		procs.CreateProc(letter("D", 2), demoStack3)
		procs.CreateProc(letter("E", 1), demoStack4)

		for procs.ReadyProcessCount() > 0 {
			procs.Yield()
		}

		con.Printf("\nKernel Process Terminated\n")
	}
}
