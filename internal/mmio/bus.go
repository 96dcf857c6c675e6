// Package mmio models a memory-mapped I/O address space: a flat byte-addressed
// register file that device drivers read and write through 32-bit register
// accesses, the same way they would a real peripheral window.
package mmio

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Region describes one mapped device window within the bus.
type Region struct {
	Name string
	Base uint64
	Size uint64
}

func (r Region) contains(addr uint64) bool {
	return addr >= r.Base && addr < r.Base+r.Size
}

// Bus is an in-memory stand-in for physically addressed device memory. A
// single Bus typically models the whole SoC's peripheral window; drivers
// register the Region they own and only touch offsets inside it.
type Bus struct {
	mu      sync.Mutex
	base    uint64
	data    []byte
	regions []Region
}

// NewBus creates a bus covering [base, base+size) backed by a zeroed byte
// slice, the same backing-slice-under-a-lock shape as the teacher's RAM
// backend.
func NewBus(base, size uint64) *Bus {
	return &Bus{
		base: base,
		data: make([]byte, size),
	}
}

// Map registers a named region within the bus. Overlapping regions are
// rejected since two drivers must never own the same MMIO window.
func (b *Bus) Map(r Region) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.Base < b.base || r.Base+r.Size > b.base+uint64(len(b.data)) {
		return fmt.Errorf("mmio: region %s [%#x,%#x) outside bus [%#x,%#x)",
			r.Name, r.Base, r.Base+r.Size, b.base, b.base+uint64(len(b.data)))
	}
	for _, existing := range b.regions {
		if r.Base < existing.Base+existing.Size && existing.Base < r.Base+r.Size {
			return fmt.Errorf("mmio: region %s overlaps existing region %s", r.Name, existing.Name)
		}
	}
	b.regions = append(b.regions, r)
	return nil
}

func (b *Bus) offset(addr uint64) (int, error) {
	if addr < b.base || addr >= b.base+uint64(len(b.data)) {
		return 0, fmt.Errorf("mmio: address %#x out of bus range [%#x,%#x)", addr, b.base, b.base+uint64(len(b.data)))
	}
	return int(addr - b.base), nil
}

// Read32 performs a little-endian 32-bit register read at addr.
func (b *Bus) Read32(addr uint64) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	off, err := b.offset(addr)
	if err != nil {
		return 0, err
	}
	if off+4 > len(b.data) {
		return 0, fmt.Errorf("mmio: read32 at %#x overruns bus", addr)
	}
	return binary.LittleEndian.Uint32(b.data[off : off+4]), nil
}

// Write32 performs a little-endian 32-bit register write at addr.
func (b *Bus) Write32(addr uint64, v uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	off, err := b.offset(addr)
	if err != nil {
		return err
	}
	if off+4 > len(b.data) {
		return fmt.Errorf("mmio: write32 at %#x overruns bus", addr)
	}
	binary.LittleEndian.PutUint32(b.data[off:off+4], v)
	return nil
}

// ReadAt/WriteAt give the bus the same io.ReaderAt/io.WriterAt-like shape
// the teacher's backends expose, for bulk transfers (e.g. FIFO drains).
func (b *Bus) ReadAt(p []byte, addr uint64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	off, err := b.offset(addr)
	if err != nil {
		return 0, err
	}
	n := copy(p, b.data[off:])
	return n, nil
}

func (b *Bus) WriteAt(p []byte, addr uint64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	off, err := b.offset(addr)
	if err != nil {
		return 0, err
	}
	n := copy(b.data[off:], p)
	return n, nil
}

// Regions returns the currently mapped regions, for diagnostics.
func (b *Bus) Regions() []Region {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Region, len(b.regions))
	copy(out, b.regions)
	return out
}
