package loader

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"minikern/pkg/mem"
)

// ErrBadImage is returned for manifests that do not describe a loadable
// program.
var ErrBadImage = errors.New("bad program image")

// Image is a parsed, loadable program image.
type Image struct {
	// Name is the program's short name.
	Name string
	// Entry is the program entry address.
	Entry mem.UserAddr
	// Segments are the memory regions to establish, in manifest order.
	Segments []Segment
}

// Segment is one loadable memory region. Size may exceed len(Data); the
// remainder is zero-filled (bss-style).
type Segment struct {
	VAddr mem.UserAddr
	Size  int
	Data  []byte
}

// manifest is the YAML wire form of an image.
type manifest struct {
	Name     string `yaml:"name"`
	Entry    uint32 `yaml:"entry"`
	Segments []struct {
		VAddr uint32 `yaml:"vaddr"`
		Size  int    `yaml:"size"`
		Data  string `yaml:"data"`
	} `yaml:"segments"`
}

// Parse decodes a YAML image manifest.
func Parse(b []byte) (*Image, error) {
	var m manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrBadImage)
	}
	if len(m.Segments) == 0 {
		return nil, fmt.Errorf("%w: no segments", ErrBadImage)
	}

	img := &Image{
		Name:  m.Name,
		Entry: mem.UserAddr(m.Entry),
	}
	for i, s := range m.Segments {
		size := s.Size
		if size < len(s.Data) {
			size = len(s.Data)
		}
		if size == 0 {
			return nil, fmt.Errorf("%w: segment %d is empty", ErrBadImage, i)
		}
		if uint64(s.VAddr)+uint64(size) > uint64(mem.UserSpaceTop) {
			return nil, fmt.Errorf("%w: segment %d outside user space", ErrBadImage, i)
		}
		img.Segments = append(img.Segments, Segment{
			VAddr: mem.UserAddr(s.VAddr),
			Size:  size,
			Data:  []byte(s.Data),
		})
	}
	if !img.contains(img.Entry) {
		return nil, fmt.Errorf("%w: entry %#x outside every segment", ErrBadImage, img.Entry)
	}
	return img, nil
}

// contains reports whether addr falls inside one of the image's segments.
func (img *Image) contains(addr mem.UserAddr) bool {
	for _, s := range img.Segments {
		if addr >= s.VAddr && uint64(addr) < uint64(s.VAddr)+uint64(s.Size) {
			return true
		}
	}
	return false
}

// Load establishes the image's segments in the target address space. On
// failure the space may hold partial mappings; the caller owns the space and
// is expected to destroy it.
func Load(as *mem.AddressSpace, img *Image) error {
	for i, s := range img.Segments {
		if err := as.Map(s.VAddr, s.Size); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		if len(s.Data) > 0 {
			if err := as.CopyOut(s.Data, s.VAddr); err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}
		}
	}
	return nil
}
