package mem

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PageSize is the size of one virtual page.
const PageSize = 4096

// UserAddr is a virtual address in a 32-bit user address space.
type UserAddr uint32

// User address space layout. User addresses run from zero up to UserSpaceTop;
// the initial stack sits at the very top and grows down.
const (
	UserSpaceTop UserAddr = 0x80000000
	UserStackTop          = UserSpaceTop
	StackPages            = 16
)

// Address space errors.
var (
	// ErrDestroyed is returned when operating on a destroyed address space.
	ErrDestroyed = errors.New("address space destroyed")
	// ErrActive is returned when destroying an address space that is still
	// installed on a running thread.
	ErrActive = errors.New("address space still active")
	// ErrBadAddress is returned for mappings outside the user address range.
	ErrBadAddress = errors.New("address outside user space")
)

// AddressSpace is a simulated user virtual address space: a sparse set of
// pages reserved from a shared Allocator. Each space is exclusively owned by
// one process at a time and is never shared.
type AddressSpace struct {
	id    uuid.UUID
	alloc *Allocator

	mu        sync.Mutex
	pages     map[UserAddr][]byte
	active    bool
	destroyed bool
}

// NewAddressSpace creates an empty address space drawing pages from alloc.
func NewAddressSpace(alloc *Allocator) *AddressSpace {
	return &AddressSpace{
		id:    uuid.New(),
		alloc: alloc,
		pages: make(map[UserAddr][]byte),
	}
}

// ID returns the space's unique identity, used in traces and to tell two
// spaces apart across an exec image swap.
func (as *AddressSpace) ID() string {
	return as.id.String()
}

// Map reserves and zero-fills the pages covering [base, base+length).
// Pages already mapped are left as they are.
func (as *AddressSpace) Map(base UserAddr, length int) error {
	if length <= 0 {
		return nil
	}
	end := uint64(base) + uint64(length)
	if end > uint64(UserSpaceTop) {
		return fmt.Errorf("%w: %#x+%#x", ErrBadAddress, base, length)
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	if as.destroyed {
		return ErrDestroyed
	}

	first := pageBase(base)
	last := pageBase(UserAddr(end - 1))
	var missing []UserAddr
	for p := first; ; p += PageSize {
		if _, ok := as.pages[p]; !ok {
			missing = append(missing, p)
		}
		if p == last {
			break
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if err := as.alloc.reserve(len(missing)); err != nil {
		return err
	}
	for _, p := range missing {
		as.pages[p] = make([]byte, PageSize)
	}
	return nil
}

// DefineStack maps the initial stack region and returns the initial stack
// pointer, which sits at the very top of user space.
func (as *AddressSpace) DefineStack() (UserAddr, error) {
	base := UserStackTop - StackPages*PageSize
	if err := as.Map(base, StackPages*PageSize); err != nil {
		return 0, err
	}
	return UserStackTop, nil
}

// Copy duplicates the address space, page for page, into a fresh space
// drawing from the same allocator. The copy is inactive.
func (as *AddressSpace) Copy() (*AddressSpace, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.destroyed {
		return nil, ErrDestroyed
	}
	if err := as.alloc.reserve(len(as.pages)); err != nil {
		return nil, err
	}
	dup := &AddressSpace{
		id:    uuid.New(),
		alloc: as.alloc,
		pages: make(map[UserAddr][]byte, len(as.pages)),
	}
	for base, page := range as.pages {
		p := make([]byte, PageSize)
		copy(p, page)
		dup.pages[base] = p
	}
	return dup, nil
}

// Activate installs the space on the calling thread's simulated MMU.
// Activating a destroyed space is a checked error.
func (as *AddressSpace) Activate() error {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.destroyed {
		return ErrDestroyed
	}
	as.active = true
	return nil
}

// Deactivate removes the space from the calling thread's simulated MMU.
func (as *AddressSpace) Deactivate() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.active = false
}

// Destroy releases every page back to the allocator. A space must be
// deactivated first and can be destroyed at most once.
func (as *AddressSpace) Destroy() error {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.destroyed {
		return ErrDestroyed
	}
	if as.active {
		return ErrActive
	}
	as.alloc.release(len(as.pages))
	as.pages = nil
	as.destroyed = true
	return nil
}

// Pages returns the number of mapped pages.
func (as *AddressSpace) Pages() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return len(as.pages)
}

// pageBase rounds an address down to its page boundary.
func pageBase(addr UserAddr) UserAddr {
	return addr &^ (PageSize - 1)
}
