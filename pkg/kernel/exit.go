package kernel

import "minikern/pkg/kthread"

// Exit terminates the calling process with the given exit code. It tears
// down the address space, detaches the calling thread, publishes the
// termination to a waiting parent (or destroys the process immediately when
// orphaned), and ends the thread of control. It does not return.
func (k *Kernel) Exit(ctx *Context, code int) {
	p := ctx.Proc

	// Clear the address-space slot before destroying the space, so no
	// concurrent path can reactivate a half-destroyed space.
	if as := p.SetAddressSpace(nil); as != nil {
		as.Deactivate()
		_ = as.Destroy()
	}

	p.DetachThread()

	orphan := k.table.Exit(p, code)

	k.metrics.observeExit(orphan)
	k.metrics.observeLive(k.table.Count())
	k.log.Debug("syscall: exit", "pid", p.PID(), "code", code, "orphan", orphan)

	kthread.Exit()
	panic("returned from thread exit")
}
