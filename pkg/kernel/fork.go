package kernel

import (
	"minikern/pkg/arch"
	"minikern/pkg/kthread"
	"minikern/pkg/proc"
)

// Fork duplicates the calling process: a new child with a copied address
// space and a thread resuming from the caller's register state. The child
// observes a return value of 0; the caller receives the child's identifier.
//
// Any failure fully unwinds: the child is unlinked and destroyed, and
// nothing is left half-registered.
func (k *Kernel) Fork(ctx *Context, tf *arch.Trapframe) (proc.PID, error) {
	parent := ctx.Proc

	child, err := k.table.Create(parent.Name())
	if err != nil {
		return 0, err
	}
	parent.AdoptChild(child)

	cas, err := parent.AddressSpace().Copy()
	if err != nil {
		parent.AbandonChild(child)
		_ = k.table.Destroy(child)
		return 0, err
	}
	child.SetAddressSpace(cas)

	// The trapframe copy lives on the heap and is owned by the child's
	// startup state; the forking thread keeps no reference to it.
	ctf := tf.Clone()

	// Past this point nothing can fail.
	kthread.Spawn(child.Name(), func(t *kthread.Thread) {
		child.AttachThread()
		k.enterForkedProcess(&Context{Proc: child, Thread: t}, ctf)
	})

	k.metrics.observeFork()
	k.metrics.observeLive(k.table.Count())
	k.log.Debug("syscall: fork", "parent", parent.PID(), "child", child.PID())
	return child.PID(), nil
}

// enterForkedProcess is the child thread's entry stub: it forces the fork
// return value to 0, steps past the trapping instruction, activates the
// copied address space and resumes in user mode.
func (k *Kernel) enterForkedProcess(ctx *Context, tf *arch.Trapframe) {
	tf.SetSuccess(0)
	tf.AdvancePC()
	if as := ctx.Proc.AddressSpace(); as != nil {
		_ = as.Activate()
	}
	k.enterUsermode(ctx, tf)
}
