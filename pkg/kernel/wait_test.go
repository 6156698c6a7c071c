package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikern/pkg/arch"
	"minikern/pkg/kthread"
	"minikern/pkg/mem"
	"minikern/pkg/proc"
)

func TestWaitRejectsNonzeroOptions(t *testing.T) {
	k := New(Config{Usermode: exitWithA0})
	ctx := testProc(t, k, "init")

	pid, err := k.Fork(ctx, &arch.Trapframe{A0: 5})
	require.NoError(t, err)

	_, err = k.Waitpid(ctx, pid, scratchBase, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// No side effects: the child is still collectable.
	got, err := k.Waitpid(ctx, pid, scratchBase, 0)
	require.NoError(t, err)
	assert.Equal(t, pid, got)
}

func TestWaitUnknownTargetFailsWithoutBlocking(t *testing.T) {
	k := New(Config{})
	ctx := testProc(t, k, "init")
	other := testProc(t, k, "other")

	// Never a child at all.
	_, err := k.Waitpid(ctx, proc.PID(4242), scratchBase, 0)
	assert.ErrorIs(t, err, proc.ErrNoSuchProcess)

	// A live process that is not our child.
	_, err = k.Waitpid(ctx, other.Proc.PID(), scratchBase, 0)
	assert.ErrorIs(t, err, proc.ErrNoSuchProcess)
}

func TestWaitStatusFaultIsDistinctAndLeavesChildCollectable(t *testing.T) {
	k := New(Config{Usermode: exitWithA0})
	ctx := testProc(t, k, "init")

	pid, err := k.Fork(ctx, &arch.Trapframe{A0: 7})
	require.NoError(t, err)

	_, err = k.Waitpid(ctx, pid, mem.UserAddr(0x9000), 0)
	assert.ErrorIs(t, err, mem.ErrFault)
	assert.NotErrorIs(t, err, proc.ErrNoSuchProcess)

	got, err := k.Waitpid(ctx, pid, scratchBase, 0)
	require.NoError(t, err)
	assert.Equal(t, pid, got)

	status, err := ctx.Proc.AddressSpace().CopyInWord(scratchBase)
	require.NoError(t, err)
	assert.Equal(t, 7, arch.ExitCode(int(status)))
}

func TestForkExitWaitScenario(t *testing.T) {
	k := New(Config{Usermode: exitWithA0})
	ctx := testProc(t, k, "init")

	pid, err := k.Fork(ctx, &arch.Trapframe{A0: 7})
	require.NoError(t, err)

	got, err := k.Waitpid(ctx, pid, scratchBase, 0)
	require.NoError(t, err)
	assert.Equal(t, pid, got)

	status, err := ctx.Proc.AddressSpace().CopyInWord(scratchBase)
	require.NoError(t, err)
	assert.True(t, arch.Exited(int(status)))
	assert.Equal(t, 7, arch.ExitCode(int(status)))

	// The child has been reaped: unlinked, deregistered, not collectable
	// twice.
	assert.Empty(t, ctx.Proc.ChildPIDs())
	_, ok := k.Table().Lookup(pid)
	assert.False(t, ok)
	_, err = k.Waitpid(ctx, pid, scratchBase, 0)
	assert.ErrorIs(t, err, proc.ErrNoSuchProcess)
}

func TestWaitTwoChildrenEitherTerminationOrder(t *testing.T) {
	for _, firstToExit := range []int{11, 22} {
		name := "first-exits-11"
		if firstToExit == 22 {
			name = "first-exits-22"
		}
		t.Run(name, func(t *testing.T) {
			gates := map[int]chan struct{}{
				11: make(chan struct{}),
				22: make(chan struct{}),
			}
			k := New(Config{
				Usermode: func(k *Kernel, ctx *Context, tf *arch.Trapframe) {
					code := int(tf.A0)
					<-gates[code]
					k.Exit(ctx, code)
				},
			})
			ctx := testProc(t, k, "init")

			pid1, err := k.Fork(ctx, &arch.Trapframe{A0: 11})
			require.NoError(t, err)
			pid2, err := k.Fork(ctx, &arch.Trapframe{A0: 22})
			require.NoError(t, err)

			close(gates[firstToExit])
			// Let the first child publish before releasing the second.
			time.Sleep(10 * time.Millisecond)
			close(gates[33 - firstToExit])

			// Collect in fixed order regardless of termination order.
			for _, want := range []struct {
				pid  proc.PID
				code int
			}{{pid1, 11}, {pid2, 22}} {
				got, err := k.Waitpid(ctx, want.pid, scratchBase, 0)
				require.NoError(t, err)
				assert.Equal(t, want.pid, got)
				status, err := ctx.Proc.AddressSpace().CopyInWord(scratchBase)
				require.NoError(t, err)
				assert.Equal(t, want.code, arch.ExitCode(int(status)))
			}
		})
	}
}

func TestOrphanIsDestroyedImmediately(t *testing.T) {
	hold := make(chan struct{})
	k := New(Config{
		Usermode: func(k *Kernel, ctx *Context, tf *arch.Trapframe) {
			<-hold
			k.Exit(ctx, 3)
		},
	})
	ctx := testProc(t, k, "init")

	childPID := make(chan proc.PID, 1)
	parent := kthread.Spawn("init", func(*kthread.Thread) {
		pid, err := k.Fork(ctx, &arch.Trapframe{})
		if err != nil {
			close(childPID)
			return
		}
		childPID <- pid
		// Terminate before ever waiting on the child.
		k.Exit(ctx, 0)
	})

	cpid := recv(t, childPID)
	parent.Join()

	// The parent had no parent of its own, so it is gone already.
	_, ok := k.Table().Lookup(ctx.Proc.PID())
	assert.False(t, ok)

	// The child terminates with no one left to wait for it and is
	// destroyed on the spot rather than lingering as a zombie.
	close(hold)
	require.Eventually(t, func() bool {
		_, ok := k.Table().Lookup(cpid)
		return !ok && k.Table().Count() == 0
	}, 5*time.Second, 10*time.Millisecond)
}
