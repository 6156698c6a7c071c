package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"minikern/pkg/arch"
	"minikern/pkg/kthread"
	"minikern/pkg/mem"
)

// scratchBase is a page mapped into every test process for user-memory
// traffic: status words, paths, argument vectors.
const scratchBase = mem.UserAddr(0x1000)

// exitWithA0 is a user program that terminates with the exit code its
// creator stashed in the A0 register before forking.
func exitWithA0(k *Kernel, ctx *Context, tf *arch.Trapframe) {
	k.Exit(ctx, int(tf.A0))
}

// testProc hand-builds a running process with a scratch page, standing in
// for a bootstrap when no program image is needed.
func testProc(t *testing.T, k *Kernel, name string) *Context {
	t.Helper()
	p, err := k.Table().Create(name)
	require.NoError(t, err)
	as := mem.NewAddressSpace(k.Memory())
	require.NoError(t, as.Map(scratchBase, mem.PageSize))
	require.NoError(t, as.Activate())
	p.SetAddressSpace(as)
	return &Context{Proc: p}
}

// runExiting calls Exit for ctx on its own thread, since Exit ends the
// thread of control it runs on, and waits for it to finish.
func runExiting(t *testing.T, k *Kernel, ctx *Context, code int) {
	t.Helper()
	kthread.Spawn(ctx.Proc.Name(), func(*kthread.Thread) {
		k.Exit(ctx, code)
	}).Join()
}

// recv receives one value or fails the test after a timeout.
func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for user program")
		panic("unreachable")
	}
}

func TestGetpid(t *testing.T) {
	k := New(Config{})
	ctx := testProc(t, k, "init")
	require.Equal(t, ctx.Proc.PID(), k.Getpid(ctx))
}
