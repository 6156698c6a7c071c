package mem

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// User-memory boundary errors.
var (
	// ErrFault is returned when a boundary copy touches an unmapped address.
	ErrFault = errors.New("bad user address")
	// ErrTooLong is returned when a string copy exceeds its length bound
	// without finding a terminator.
	ErrTooLong = errors.New("string too long")
)

// The simulated machine is little-endian.
var byteOrder = binary.LittleEndian

// page returns the page holding addr, or a fault error.
// Caller holds as.mu.
func (as *AddressSpace) page(addr UserAddr) ([]byte, error) {
	if as.destroyed {
		return nil, fmt.Errorf("%w: %#x", ErrFault, addr)
	}
	p, ok := as.pages[pageBase(addr)]
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrFault, addr)
	}
	return p, nil
}

// CopyIn copies len(dst) bytes from user address src into kernel memory.
// Touching an unmapped address fails with ErrFault and may leave dst
// partially written.
func (as *AddressSpace) CopyIn(src UserAddr, dst []byte) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	for n := 0; n < len(dst); {
		page, err := as.page(src)
		if err != nil {
			return err
		}
		off := int(src % PageSize)
		c := copy(dst[n:], page[off:])
		n += c
		src += UserAddr(c)
	}
	return nil
}

// CopyOut copies src into user memory at dst. Touching an unmapped address
// fails with ErrFault.
func (as *AddressSpace) CopyOut(src []byte, dst UserAddr) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	for n := 0; n < len(src); {
		page, err := as.page(dst)
		if err != nil {
			return err
		}
		off := int(dst % PageSize)
		c := copy(page[off:], src[n:])
		n += c
		dst += UserAddr(c)
	}
	return nil
}

// CopyInWord reads a 32-bit word from user memory.
func (as *AddressSpace) CopyInWord(src UserAddr) (uint32, error) {
	var buf [4]byte
	if err := as.CopyIn(src, buf[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(buf[:]), nil
}

// CopyOutWord writes a 32-bit word to user memory.
func (as *AddressSpace) CopyOutWord(v uint32, dst UserAddr) error {
	var buf [4]byte
	byteOrder.PutUint32(buf[:], v)
	return as.CopyOut(buf[:], dst)
}

// CopyInString copies a NUL-terminated string from user memory, reading at
// most maxLen bytes including the terminator. An unmapped byte fails with
// ErrFault; a missing terminator fails with ErrTooLong.
func (as *AddressSpace) CopyInString(src UserAddr, maxLen int) (string, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	buf := make([]byte, 0, 64)
	for i := 0; i < maxLen; i++ {
		page, err := as.page(src)
		if err != nil {
			return "", err
		}
		b := page[src%PageSize]
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
		src++
	}
	return "", fmt.Errorf("%w: no terminator within %d bytes", ErrTooLong, maxLen)
}
