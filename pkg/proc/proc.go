package proc

import (
	"sync"

	"minikern/pkg/mem"
)

// PID is a process identifier, unique among live processes.
type PID int32

// Status is a process's lifecycle status. The only transition is
// StatusAlive -> StatusZombie, and it happens exactly once.
type Status int

const (
	// StatusAlive indicates the process has not terminated.
	StatusAlive Status = iota
	// StatusZombie indicates the process has terminated but its exit status
	// has not been collected by its parent.
	StatusZombie
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusAlive:
		return "alive"
	case StatusZombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// Proc is one process. The mutex guards status, exit code, name, the parent
// back-reference and the child list; the condition variable is paired with
// that same mutex and announces this process's Alive->Zombie transition.
//
// The address-space slot has its own mutex: activation and image swaps run on
// hotter paths and must not contend with status bookkeeping.
type Proc struct {
	pid PID

	mu        sync.Mutex
	cond      *sync.Cond
	name      string
	status    Status
	exitCode  int
	parent    *Proc
	children  []*Proc
	threads   int
	destroyed bool

	asMu sync.Mutex
	as   *mem.AddressSpace
}

// PID returns the process identifier. Immutable after creation.
func (p *Proc) PID() PID {
	return p.pid
}

// Name returns the process's short name.
func (p *Proc) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// SetName renames the process. Exec uses this when swapping images.
func (p *Proc) SetName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
}

// Status returns the current lifecycle status.
func (p *Proc) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// ExitCode returns the exit code and whether it is meaningful yet. The code
// is defined only once the process is a zombie.
func (p *Proc) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusZombie {
		return 0, false
	}
	return p.exitCode, true
}

// ParentPID returns the parent's identifier, or 0 if the process has no
// parent or has been orphaned.
func (p *Proc) ParentPID() PID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.parent == nil {
		return 0
	}
	return p.parent.pid
}

// AdoptChild links c as the youngest child of p. The append and the parent
// back-reference are set under the respective locks in parent-then-child
// order, so a concurrent exit of p can never observe a half-linked child.
func (p *Proc) AdoptChild(c *Proc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.children = append(p.children, c)
	c.mu.Lock()
	c.parent = p
	c.mu.Unlock()
}

// AbandonChild unlinks c from p's child list and clears c's parent
// back-reference. Used to unwind a failed fork.
func (p *Proc) AbandonChild(c *Proc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeChildLocked(c)
	c.mu.Lock()
	c.parent = nil
	c.mu.Unlock()
}

// removeChildLocked drops c from the child list. Caller holds p.mu.
func (p *Proc) removeChildLocked(c *Proc) {
	for i, ch := range p.children {
		if ch == c {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

// ChildPIDs returns the identifiers of p's children in adoption order.
func (p *Proc) ChildPIDs() []PID {
	p.mu.Lock()
	defer p.mu.Unlock()
	pids := make([]PID, len(p.children))
	for i, c := range p.children {
		pids[i] = c.pid
	}
	return pids
}

// AddressSpace returns the currently owned address space, which may be nil
// during teardown.
func (p *Proc) AddressSpace() *mem.AddressSpace {
	p.asMu.Lock()
	defer p.asMu.Unlock()
	return p.as
}

// SetAddressSpace installs as and returns the previously owned space. The
// caller takes over the old space; passing nil detaches.
func (p *Proc) SetAddressSpace(as *mem.AddressSpace) *mem.AddressSpace {
	p.asMu.Lock()
	defer p.asMu.Unlock()
	old := p.as
	p.as = as
	return old
}

// AttachThread records a thread of control entering the process.
func (p *Proc) AttachThread() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.threads++
}

// DetachThread records the calling thread leaving the process. The process
// must not be used through this thread afterwards.
func (p *Proc) DetachThread() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.threads > 0 {
		p.threads--
	}
}

// Threads returns the number of attached threads.
func (p *Proc) Threads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.threads
}
