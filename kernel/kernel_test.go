package kernel_test

import (
	"strings"
	"testing"

	"github.com/dargueta/floppyos/kernel"
	"github.com/dargueta/floppyos/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bootedKernel(t *testing.T) *kernel.Kernel {
	m, err := machine.NewWithBlankDisk()
	require.NoError(t, err)
	return kernel.New(m)
}

// TestProcessTraceDemo boots the narrated demo and compares the whole
// screen against the expected interleaving of kernel and user processes.
func TestProcessTraceDemo(t *testing.T) {
	k := bootedKernel(t)
	require.NoError(t, k.Boot(k.ProcessTraceDemo()))

	expected := strings.Join([]string{
		"Kernel Process Started",
		"User Process A Start",
		"Kernel Process Resumed",
		"User Process B Start",
		"Kernel Process Resumed",
		"User Process C Start",
		"Kernel Process Resumed",
		"User Process D Start",
		"Kernel Process Resumed",
		"User Process B Resumed 1st",
		"Kernel Process Resumed",
		"User Process C Resumed 1st",
		"Kernel Process Resumed",
		"User Process D Resumed 1st",
		"Kernel Process Resumed",
		"User Process C Resumed 2nd",
		"Kernel Process Resumed",
		"User Process D Resumed 2nd",
		"Kernel Process Resumed",
		"User Process D Resumed 3rd",
		"Kernel Process Resumed",
		"Kernel Process Terminated",
	}, "\n")

	assert.Equal(t, expected, k.Machine.Video.Screen())
}

// TestRoundRobinDemo checks the terse variant: one full "ABCDE" round
// first, then round-robin until everyone has exited.
func TestRoundRobinDemo(t *testing.T) {
	k := bootedKernel(t)
	require.NoError(t, k.Boot(k.RoundRobinDemo()))

	screen := k.Machine.Video.Screen()
	assert.True(t, strings.HasPrefix(screen, "ABCDEBCDECDC"),
		"unexpected schedule order: %q", screen)
	assert.True(t, strings.HasSuffix(screen, "Kernel Process Terminated"))
}

func TestMountFloppy(t *testing.T) {
	k := bootedKernel(t)
	require.NoError(t, k.MountFloppy())
	assert.Empty(t, k.FS.DirectoryEntries())
}

// TestFileSessionThroughKernel drives the file system from a user process,
// the way the file demo does on hardware.
func TestFileSessionThroughKernel(t *testing.T) {
	k := bootedKernel(t)
	require.NoError(t, k.MountFloppy())

	var sessionErr error
	entry := func() {
		k.Procs.CreateProc(func() {
			sessionErr = k.FS.CreateFile("NOTE", "TXT")
			if sessionErr == nil {
				sessionErr = k.FS.OpenFile("NOTE", "TXT")
			}
			if sessionErr == nil {
				sessionErr = k.FS.WriteBytes('n', 3)
			}
			if sessionErr == nil {
				sessionErr = k.FS.CloseFile()
			}
			k.Procs.Exit()
		}, 0x10000)

		for k.Procs.ReadyProcessCount() > 0 {
			k.Procs.Yield()
		}
	}
	require.NoError(t, k.Boot(entry))
	require.NoError(t, sessionErr)

	require.NoError(t, k.FS.OpenFile("NOTE", "TXT"))
	b, err := k.FS.ReadByte(2)
	require.NoError(t, err)
	assert.EqualValues(t, 'n', b)
}
