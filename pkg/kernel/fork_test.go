package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikern/pkg/arch"
	"minikern/pkg/mem"
	"minikern/pkg/proc"
)

func TestForkChildObservesZeroParentObservesPID(t *testing.T) {
	childTF := make(chan *arch.Trapframe, 1)
	k := New(Config{
		Usermode: func(_ *Kernel, _ *Context, tf *arch.Trapframe) {
			childTF <- tf.Clone()
		},
	})
	ctx := testProc(t, k, "init")

	tf := &arch.Trapframe{V0: 999, SP: 0x7fffff00, EPC: 0x400040}
	pid, err := k.Fork(ctx, tf)
	require.NoError(t, err)
	assert.Greater(t, pid, proc.PID(0))
	assert.NotEqual(t, ctx.Proc.PID(), pid)

	// The caller's own frame is untouched by the child's entry stub.
	assert.Equal(t, uint32(999), tf.V0)

	ctf := recv(t, childTF)
	assert.Equal(t, uint32(0), ctf.V0, "child must observe return value 0")
	assert.Equal(t, uint32(0), ctf.A3)
	assert.Equal(t, tf.SP, ctf.SP)
	assert.Equal(t, tf.EPC+arch.InstructionSize, ctf.EPC)

	assert.Equal(t, []proc.PID{pid}, ctx.Proc.ChildPIDs())
}

func TestForkDuplicatesAddressSpace(t *testing.T) {
	childRead := make(chan []byte, 1)
	k := New(Config{
		Usermode: func(_ *Kernel, ctx *Context, _ *arch.Trapframe) {
			buf := make([]byte, 5)
			if err := ctx.Proc.AddressSpace().CopyIn(scratchBase, buf); err != nil {
				buf = nil
			}
			childRead <- buf
		},
	})
	ctx := testProc(t, k, "init")
	require.NoError(t, ctx.Proc.AddressSpace().CopyOut([]byte("hello"), scratchBase))

	_, err := k.Fork(ctx, &arch.Trapframe{})
	require.NoError(t, err)

	assert.Equal(t, []byte("hello"), recv(t, childRead))
}

func TestForkChildIdentityUniqueAmongLive(t *testing.T) {
	k := New(Config{Usermode: exitWithA0})
	ctx := testProc(t, k, "init")

	seen := map[proc.PID]bool{ctx.Proc.PID(): true}
	for i := 0; i < 8; i++ {
		pid, err := k.Fork(ctx, &arch.Trapframe{A0: uint32(i)})
		require.NoError(t, err)
		assert.False(t, seen[pid], "PID %d reused among live processes", pid)
		seen[pid] = true
	}
}

func TestForkUnwindsOnTableFull(t *testing.T) {
	k := New(Config{MaxProcs: 1})
	ctx := testProc(t, k, "init")

	_, err := k.Fork(ctx, &arch.Trapframe{})
	assert.ErrorIs(t, err, proc.ErrTooManyProcesses)
	assert.Empty(t, ctx.Proc.ChildPIDs())
	assert.Equal(t, 1, k.Table().Count())
}

func TestForkUnwindsOnAddressSpaceCopyFailure(t *testing.T) {
	// One page in the pool: the parent's scratch page takes it, so the
	// child's address-space copy cannot be satisfied.
	k := New(Config{Memory: mem.NewAllocator(1)})
	ctx := testProc(t, k, "init")

	_, err := k.Fork(ctx, &arch.Trapframe{})
	assert.ErrorIs(t, err, mem.ErrNoMemory)

	// Nothing is left half-registered.
	assert.Empty(t, ctx.Proc.ChildPIDs())
	assert.Equal(t, 1, k.Table().Count())
	assert.Equal(t, 1, k.Memory().InUse())
}
