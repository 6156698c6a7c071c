package kernel

import (
	"errors"
	"fmt"
	"log/slog"

	"minikern/pkg/arch"
	"minikern/pkg/kthread"
	"minikern/pkg/loader"
	"minikern/pkg/mem"
	"minikern/pkg/proc"
)

// ErrInvalidArgument is returned for unsupported option flags and malformed
// argument vectors.
var ErrInvalidArgument = errors.New("invalid argument")

// Marshalling bounds for the user/kernel boundary.
const (
	// PathMax bounds a program path copied in from user memory.
	PathMax = 1024
	// ArgMax bounds the total bytes of argument strings.
	ArgMax = 64 << 10
	// MaxArgs bounds the argument count.
	MaxArgs = 1024
)

// DefaultMemoryPages is the physical page pool size when none is configured.
const DefaultMemoryPages = 4096

// UsermodeFunc runs a thread in user mode, starting from the register state
// in tf. The kernel calls it on a fresh thread after fork, after a
// successful exec, and for the bootstrap process. If it returns, the kernel
// treats that as a clean exit with code 0.
type UsermodeFunc func(k *Kernel, ctx *Context, tf *arch.Trapframe)

// Context identifies the calling process and thread: the explicit stand-in
// for a per-CPU current-process pointer.
type Context struct {
	Proc   *proc.Proc
	Thread *kthread.Thread
}

// Config configures a Kernel.
type Config struct {
	// Volume is the program filesystem. Required for exec and bootstrap.
	Volume *loader.Volume
	// Memory is the physical page pool; nil selects a DefaultMemoryPages pool.
	Memory *mem.Allocator
	// Usermode runs user code; nil installs a stub that exits immediately.
	Usermode UsermodeFunc
	// MaxProcs bounds live processes; <= 0 selects the registry default.
	MaxProcs int
	// Logger receives syscall traces; nil discards them.
	Logger *slog.Logger
	// Metrics receives lifecycle counters; nil disables them.
	Metrics *Metrics
}

// Kernel is the process-lifecycle core: fork, exec, exit and wait over a
// process registry, wired to the memory, loader and thread collaborators.
type Kernel struct {
	table    *proc.Table
	vol      *loader.Volume
	memory   *mem.Allocator
	usermode UsermodeFunc
	log      *slog.Logger
	metrics  *Metrics
}

// New creates a kernel from cfg.
func New(cfg Config) *Kernel {
	k := &Kernel{
		table:    proc.NewTable(cfg.MaxProcs),
		vol:      cfg.Volume,
		memory:   cfg.Memory,
		usermode: cfg.Usermode,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if k.vol == nil {
		k.vol = loader.NewVolume()
	}
	if k.memory == nil {
		k.memory = mem.NewAllocator(DefaultMemoryPages)
	}
	if k.usermode == nil {
		k.usermode = func(*Kernel, *Context, *arch.Trapframe) {}
	}
	if k.log == nil {
		k.log = slog.New(slog.DiscardHandler)
	}
	return k
}

// Table returns the process registry.
func (k *Kernel) Table() *proc.Table {
	return k.table
}

// Volume returns the program volume.
func (k *Kernel) Volume() *loader.Volume {
	return k.vol
}

// Memory returns the physical page pool.
func (k *Kernel) Memory() *mem.Allocator {
	return k.memory
}

// Getpid returns the calling process's identifier. It cannot fail.
func (k *Kernel) Getpid(ctx *Context) proc.PID {
	return ctx.Proc.PID()
}

// Bootstrap creates and starts the system's first process from the program
// at path. The process has no parent; its thread enters user mode at the
// image entry with args marshalled the same way exec does.
func (k *Kernel) Bootstrap(path string, args []string) (*Context, error) {
	p, err := k.table.Create(basename(path))
	if err != nil {
		return nil, err
	}
	as, tf, err := k.loadImage(path, args)
	if err != nil {
		_ = k.table.Destroy(p)
		return nil, fmt.Errorf("bootstrap %s: %w", path, err)
	}
	p.SetAddressSpace(as)

	t := kthread.Spawn(p.Name(), func(t *kthread.Thread) {
		p.AttachThread()
		if as := p.AddressSpace(); as != nil {
			_ = as.Activate()
		}
		k.enterUsermode(&Context{Proc: p, Thread: t}, tf)
	})
	k.metrics.observeLive(k.table.Count())
	k.log.Debug("syscall: bootstrap", "pid", p.PID(), "path", path, "args", len(args))
	return &Context{Proc: p, Thread: t}, nil
}

// enterUsermode hands the thread to user code and never returns: if the
// user program comes back without terminating itself, it exits cleanly.
func (k *Kernel) enterUsermode(ctx *Context, tf *arch.Trapframe) {
	k.usermode(k, ctx, tf)
	k.Exit(ctx, 0)
}

// basename returns the final element of a slash-separated path.
func basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
