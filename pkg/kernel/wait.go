package kernel

import (
	"fmt"

	"minikern/pkg/arch"
	"minikern/pkg/mem"
	"minikern/pkg/proc"
)

// Waitpid blocks the calling process until its child with the given
// identifier has terminated, writes the encoded wait status to statusAddr in
// the caller's address space, reaps the child, and returns the identifier.
//
// Option flags are not supported: any nonzero options fail with
// ErrInvalidArgument before any side effect. A target that is not a known
// child fails with proc.ErrNoSuchProcess; this does not distinguish a
// process that never was a child from one already reaped. A fault writing
// statusAddr surfaces as mem.ErrFault and leaves the child collectable.
func (k *Kernel) Waitpid(ctx *Context, pid proc.PID, statusAddr mem.UserAddr, options int) (proc.PID, error) {
	if options != 0 {
		return 0, fmt.Errorf("%w: options %#x", ErrInvalidArgument, options)
	}
	parent := ctx.Proc

	child, code, err := k.table.WaitChild(parent, pid)
	if err != nil {
		return 0, err
	}

	status := arch.ExitStatus(code)
	if err := parent.AddressSpace().CopyOutWord(uint32(status), statusAddr); err != nil {
		return 0, err
	}

	k.table.Reap(parent, child)
	k.metrics.observeReap()
	k.metrics.observeLive(k.table.Count())
	k.log.Debug("syscall: waitpid", "pid", parent.PID(), "child", pid, "status", status)
	return pid, nil
}
