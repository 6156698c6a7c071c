package mem

import (
	"errors"
	"sync"
)

// ErrNoMemory is returned when a page reservation exceeds the allocator's
// budget.
var ErrNoMemory = errors.New("out of memory")

// Allocator models the machine's physical page pool. Address spaces reserve
// pages from one shared allocator, so duplication and loading can genuinely
// fail with ErrNoMemory when the pool runs dry.
type Allocator struct {
	mu    sync.Mutex
	total int
	used  int
}

// NewAllocator creates a page pool with the given capacity.
func NewAllocator(totalPages int) *Allocator {
	return &Allocator{total: totalPages}
}

// reserve claims n pages, failing with ErrNoMemory if fewer remain.
func (a *Allocator) reserve(n int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.used+n > a.total {
		return ErrNoMemory
	}
	a.used += n
	return nil
}

// release returns n pages to the pool.
func (a *Allocator) release(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.used -= n
	if a.used < 0 {
		a.used = 0
	}
}

// InUse returns the number of reserved pages.
func (a *Allocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

// Total returns the pool capacity in pages.
func (a *Allocator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}
