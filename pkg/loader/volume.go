package loader

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when opening a path with no registered program.
var ErrNotFound = errors.New("no such program")

// Volume is the kernel's view of the program filesystem: an in-memory map
// from path to image manifest bytes.
type Volume struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewVolume creates an empty program volume.
func NewVolume() *Volume {
	return &Volume{files: make(map[string][]byte)}
}

// Register installs manifest bytes at path, replacing any previous entry.
func (v *Volume) Register(path string, contents []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.files[path] = contents
}

// Open returns the manifest bytes registered at path.
func (v *Volume) Open(path string) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	b, ok := v.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return b, nil
}

// Paths returns the registered paths, for listings.
func (v *Volume) Paths() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	paths := make([]string, 0, len(v.files))
	for p := range v.files {
		paths = append(paths, p)
	}
	return paths
}
