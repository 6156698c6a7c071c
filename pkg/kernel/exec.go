package kernel

import (
	"errors"
	"fmt"

	"minikern/pkg/arch"
	"minikern/pkg/loader"
	"minikern/pkg/mem"
)

// Execv replaces the calling process's program image and initial stack in
// place. Identity and parent/child links do not change. On success control
// transfers to the new image's entry point and Execv does not return.
//
// Every failure path leaves the original address space installed and
// untouched: the caller keeps a runnable image. The old space is destroyed
// only after the new image has been fully loaded and its stack marshalled.
func (k *Kernel) Execv(ctx *Context, pathAddr, argvAddr mem.UserAddr) error {
	p := ctx.Proc
	as := p.AddressSpace()

	path, err := as.CopyInString(pathAddr, PathMax)
	if err != nil {
		return fmt.Errorf("exec path: %w", err)
	}
	args, err := copyInArgs(as, argvAddr)
	if err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}

	newAS, tf, err := k.loadImage(path, args)
	if err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}

	// Point of no return: swap in the new space and drop the old one.
	p.SetName(basename(path))
	old := p.SetAddressSpace(newAS)
	if old != nil {
		old.Deactivate()
		_ = old.Destroy()
	}
	_ = newAS.Activate()

	k.metrics.observeExec()
	k.log.Debug("syscall: execv", "pid", p.PID(), "path", path, "args", len(args))

	k.enterUsermode(ctx, tf)
	panic("returned from user mode after exec")
}

// copyInArgs reads the argument vector from user memory: successive pointers
// until a null terminator, each referenced string copied into kernel-owned
// storage in order. Faults surface as mem.ErrFault; an oversized or endless
// vector surfaces as ErrInvalidArgument.
func copyInArgs(as *mem.AddressSpace, argvAddr mem.UserAddr) ([]string, error) {
	args := []string{}
	budget := ArgMax
	for i := 0; ; i++ {
		if i >= MaxArgs {
			return nil, fmt.Errorf("%w: more than %d arguments", ErrInvalidArgument, MaxArgs)
		}
		ptr, err := as.CopyInWord(argvAddr + mem.UserAddr(4*i))
		if err != nil {
			return nil, err
		}
		if ptr == 0 {
			return args, nil
		}
		s, err := as.CopyInString(mem.UserAddr(ptr), budget)
		if errors.Is(err, mem.ErrTooLong) {
			return nil, fmt.Errorf("%w: argument list over %d bytes", ErrInvalidArgument, ArgMax)
		}
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		budget -= len(s) + 1
		if budget <= 0 {
			return nil, fmt.Errorf("%w: argument list over %d bytes", ErrInvalidArgument, ArgMax)
		}
		args = append(args, s)
	}
}

// loadImage builds a fresh address space holding the program at path, with
// args marshalled onto its initial stack, and returns the space together
// with the entry trapframe. On error no space is returned and nothing is
// left allocated.
func (k *Kernel) loadImage(path string, args []string) (*mem.AddressSpace, *arch.Trapframe, error) {
	b, err := k.vol.Open(path)
	if err != nil {
		return nil, nil, err
	}
	img, err := loader.Parse(b)
	if err != nil {
		return nil, nil, err
	}

	as := mem.NewAddressSpace(k.memory)
	if err := loader.Load(as, img); err != nil {
		_ = as.Destroy()
		return nil, nil, err
	}
	sp, err := as.DefineStack()
	if err != nil {
		_ = as.Destroy()
		return nil, nil, err
	}
	argv, nsp, err := marshalArgs(as, sp, args)
	if err != nil {
		_ = as.Destroy()
		return nil, nil, err
	}

	tf := &arch.Trapframe{
		EPC: uint32(img.Entry),
		SP:  uint32(nsp),
		A0:  uint32(len(args)),
		A1:  uint32(argv),
	}
	return as, tf, nil
}

// marshalArgs lays out the argument block on the initial stack: each
// argument string in original order below the stack top, then, at an
// 8-byte-aligned boundary, the pointer array (argument 0 first) followed by
// a null terminator. Returns the pointer-array address, which is also the
// new stack pointer.
func marshalArgs(as *mem.AddressSpace, sp mem.UserAddr, args []string) (mem.UserAddr, mem.UserAddr, error) {
	ptrs := make([]mem.UserAddr, len(args))
	for i, a := range args {
		sp -= mem.UserAddr(len(a) + 1)
		if err := as.CopyOut(append([]byte(a), 0), sp); err != nil {
			return 0, 0, err
		}
		ptrs[i] = sp
	}

	sp &^= 7
	base := (sp - mem.UserAddr(4*(len(args)+1))) &^ 7

	for i, ptr := range ptrs {
		if err := as.CopyOutWord(uint32(ptr), base+mem.UserAddr(4*i)); err != nil {
			return 0, 0, err
		}
	}
	if err := as.CopyOutWord(0, base+mem.UserAddr(4*len(args))); err != nil {
		return 0, 0, err
	}
	return base, base, nil
}
