package proc

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry errors.
var (
	// ErrTooManyProcesses is returned when the process table is full.
	ErrTooManyProcesses = errors.New("process table full")
	// ErrNoSuchProcess is returned when a wait target is not a known child.
	// It does not distinguish a process that never was a child from one that
	// has already been reaped.
	ErrNoSuchProcess = errors.New("no such process")
	// ErrDestroyed is returned when destroying a process twice.
	ErrDestroyed = errors.New("process already destroyed")
)

// DefaultMaxProcs bounds the number of live processes.
const DefaultMaxProcs = 256

// Table is the process registry. It issues unique identifiers, tracks every
// live process, and owns the lifecycle transitions that involve more than
// one process: exit disposition and the wait rendezvous.
type Table struct {
	mu       sync.Mutex
	procs    map[PID]*Proc
	nextPID  PID
	maxProcs int
}

// NewTable creates an empty registry holding at most maxProcs live
// processes; maxProcs <= 0 selects DefaultMaxProcs.
func NewTable(maxProcs int) *Table {
	if maxProcs <= 0 {
		maxProcs = DefaultMaxProcs
	}
	return &Table{
		procs:    make(map[PID]*Proc),
		nextPID:  1,
		maxProcs: maxProcs,
	}
}

// Create allocates a fresh process: unique PID, status alive, no parent, no
// children. Fails only on table exhaustion.
func (t *Table) Create(name string) (*Proc, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.procs) >= t.maxProcs {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManyProcesses, t.maxProcs)
	}
	p := &Proc{
		pid:    t.nextPID,
		name:   name,
		status: StatusAlive,
	}
	p.cond = sync.NewCond(&p.mu)
	t.nextPID++
	t.procs[p.pid] = p
	return p, nil
}

// Lookup finds a live process by identifier.
func (t *Table) Lookup(pid PID) (*Proc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.procs[pid]
	return p, ok
}

// Count returns the number of live processes.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.procs)
}

// Destroy removes p from the registry and releases its state. The caller
// guarantees no other thread holds or will acquire p's lock. Destroying a
// process twice is a checked error.
func (t *Table) Destroy(p *Proc) error {
	t.mu.Lock()
	delete(t.procs, p.pid)
	t.mu.Unlock()

	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return ErrDestroyed
	}
	p.destroyed = true
	p.children = nil
	p.parent = nil
	p.mu.Unlock()

	if as := p.SetAddressSpace(nil); as != nil {
		as.Deactivate()
		_ = as.Destroy()
	}
	return nil
}

// Exit publishes p's termination with the given exit code and returns
// whether p was destroyed immediately (orphan) rather than left as a
// zombie for its parent to collect.
//
// Children are dispositioned first: zombie children are destroyed (no one
// can ever wait for them now) and live children are orphaned by clearing
// their parent back-reference, so their own exit destroys them directly.
// Locks are only ever taken parent-then-child.
func (t *Table) Exit(p *Proc, code int) bool {
	p.mu.Lock()

	children := p.children
	p.children = nil
	var zombies []*Proc
	for _, c := range children {
		c.mu.Lock()
		if c.status == StatusZombie {
			zombies = append(zombies, c)
		} else {
			c.parent = nil
		}
		c.mu.Unlock()
	}

	orphan := p.parent == nil
	p.status = StatusZombie
	p.exitCode = code
	if !orphan {
		p.cond.Broadcast()
	}
	p.mu.Unlock()

	for _, z := range zombies {
		_ = t.Destroy(z)
	}
	if orphan {
		_ = t.Destroy(p)
	}
	return orphan
}

// WaitChild blocks until parent's child with the given identifier has
// terminated, then returns the child and its exit code. The child is still
// registered; the caller reports the status and then calls Reap.
//
// The status re-check loop and the exit-side status write both run under the
// child's own lock, the same lock its condition variable is paired with, so
// a wakeup can never be missed and spurious wakeups are harmless.
func (t *Table) WaitChild(parent *Proc, pid PID) (*Proc, int, error) {
	parent.mu.Lock()
	var child *Proc
	for _, c := range parent.children {
		if c.pid == pid {
			child = c
			break
		}
	}
	parent.mu.Unlock()
	if child == nil {
		return nil, 0, fmt.Errorf("%w: pid %d", ErrNoSuchProcess, pid)
	}

	child.mu.Lock()
	for child.status == StatusAlive {
		child.cond.Wait()
	}
	code := child.exitCode
	child.mu.Unlock()
	return child, code, nil
}

// Reap unlinks a collected child from its parent and destroys it. Called
// after the child's status has been delivered; until then the child stays
// waitable.
func (t *Table) Reap(parent, child *Proc) {
	parent.mu.Lock()
	parent.removeChildLocked(child)
	parent.mu.Unlock()
	_ = t.Destroy(child)
}

// Info is a point-in-time view of one process, for listings.
type Info struct {
	PID      PID
	Name     string
	Status   Status
	ExitCode int
	Parent   PID
	Children int
	Pages    int
}

// Snapshot returns a view of every live process, ordered by PID.
func (t *Table) Snapshot() []Info {
	t.mu.Lock()
	procs := make([]*Proc, 0, len(t.procs))
	for _, p := range t.procs {
		procs = append(procs, p)
	}
	t.mu.Unlock()

	infos := make([]Info, 0, len(procs))
	for _, p := range procs {
		p.mu.Lock()
		info := Info{
			PID:      p.pid,
			Name:     p.name,
			Status:   p.status,
			ExitCode: p.exitCode,
			Children: len(p.children),
		}
		if p.parent != nil {
			info.Parent = p.parent.pid
		}
		p.mu.Unlock()
		if as := p.AddressSpace(); as != nil {
			info.Pages = as.Pages()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].PID < infos[j].PID })
	return infos
}
