package regs

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
	"periph.io/x/host/v3/pmem"
)

// Mem is a Window over physical memory mapped through /dev/mem.
type Mem struct {
	view *pmem.View
	regs *[Size / 4]uint32
	base uint64
}

// Map maps the register block at the physical address base. base must be
// page aligned. Remember to call Close().
func Map(base uint64) (*Mem, error) {
	if ps := uint64(unix.Getpagesize()); base%ps != 0 {
		return nil, fmt.Errorf("register base %#x is not aligned to page size %#x", base, ps)
	}

	v, err := pmem.Map(base, Size)
	if err != nil {
		return nil, fmt.Errorf("failed to map %#x: %w", base, err)
	}

	m := &Mem{view: v, base: base}
	if err := v.AsPOD(&m.regs); err != nil {
		v.Close()
		return nil, err
	}
	return m, nil
}

// Read32 loads the word holding the register at off.
func (m *Mem) Read32(off Offset) uint32 {
	return atomic.LoadUint32(&m.regs[off.Word()/4])
}

// Write32 stores v to the word holding the register at off.
func (m *Mem) Write32(off Offset, v uint32) {
	atomic.StoreUint32(&m.regs[off.Word()/4], v)
}

func (m *Mem) String() string {
	return fmt.Sprintf("nuspi@%#x", m.base)
}

// Close unmaps the register block.
func (m *Mem) Close() error {
	m.regs = nil
	return m.view.Close()
}
