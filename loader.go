package nuload

import (
	"io"

	"github.com/gentam/nuload/nuspi"
	"github.com/gentam/nuload/regs"
)

// Opcode selects the loader operation.
type Opcode uint32

const (
	OpErase Opcode = 1
	OpWrite Opcode = 2
	OpRead  Opcode = 3
	OpProbe Opcode = 4
)

func (op Opcode) String() string {
	switch op {
	case OpErase:
		return "erase"
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	case OpProbe:
		return "probe"
	}
	return "unknown"
}

// Request is one loader invocation. The meaning of the parameters depends
// on the opcode:
//
//	Op    | Param1      | Param2 | Param3
//	------+-------------+--------+-------
//	Erase | start addr  | end    | -
//	Write | buffer addr | offset | count
//	Read  | buffer addr | offset | count
//	Probe | -           | -      | -
type Request struct {
	Op     Opcode
	Param1 uint32
	Param2 uint32
	Param3 uint32
}

// Memory is the host memory holding the Write and Read buffers, addressed by
// Param1. Probe and Erase requests may pass a nil Memory.
type Memory interface {
	io.ReaderAt
	io.WriterAt
}

// Loader carries the poll budgets used for each dispatch. The zero value
// uses the defaults.
type Loader struct {
	ControllerOptions []nuspi.Option
	FlashOptions      []FlashOption
}

// Dispatch runs req with the default configuration.
func Dispatch(w regs.Window, mem Memory, req Request) int32 {
	return Loader{}.Dispatch(w, mem, req)
}

// Dispatch runs one request against the controller behind w and returns the
// loader result code: the JEDEC ID for a successful probe, zero for other
// successful operations and a nuspi.Code otherwise. Failed probes
// additionally carry nuspi.ErrGeneric so they cannot be mistaken for an ID.
//
// Memory-mapped flash access is disabled for the duration of the call and
// always re-enabled before returning.
func (l Loader) Dispatch(w regs.Window, mem Memory, req Request) int32 {
	c := nuspi.New(w, l.ControllerOptions...)
	c.SetPassthrough(false)
	defer c.SetPassthrough(true)

	f := NewFlash(c, l.FlashOptions...)

	switch req.Op {
	case OpProbe:
		id, err := f.Probe()
		if err != nil {
			return result(nuspi.ErrInit|nuspi.ErrGeneric, err)
		}
		return int32(id)

	case OpErase:
		return result(nuspi.ErrErase, f.Erase(req.Param1, req.Param2))

	case OpWrite:
		if err := checkRange("write", req.Param2, int(req.Param3)); err != nil {
			return result(nuspi.ErrWrite, err)
		}
		if mem == nil {
			return result(nuspi.ErrWrite, nuspi.ErrGeneric)
		}
		buf := make([]byte, req.Param3)
		if _, err := mem.ReadAt(buf, int64(req.Param1)); err != nil {
			return result(nuspi.ErrWrite, err)
		}
		return result(nuspi.ErrWrite, f.Write(req.Param2, buf))

	case OpRead:
		if err := checkRange("read", req.Param2, int(req.Param3)); err != nil {
			return result(nuspi.ErrRead, err)
		}
		if mem == nil {
			return result(nuspi.ErrRead, nuspi.ErrGeneric)
		}
		buf := make([]byte, req.Param3)
		if err := f.Read(req.Param2, buf); err != nil {
			return result(nuspi.ErrRead, err)
		}
		if _, err := mem.WriteAt(buf, int64(req.Param1)); err != nil {
			return result(nuspi.ErrRead, err)
		}
		return 0
	}
	return result(0, nuspi.ErrGeneric)
}

func result(phase nuspi.Code, err error) int32 {
	if err == nil {
		return 0
	}
	return int32(phase.With(err))
}

// CodeOf converts a Dispatch result of a non-probe request to an error.
func CodeOf(r int32) error {
	if r == 0 {
		return nil
	}
	return nuspi.Code(uint32(r))
}

// Buffer is host memory backed by a byte slice starting at address Base.
type Buffer struct {
	Base uint32
	Data []byte
}

func (b *Buffer) slice(off int64, n int) ([]byte, error) {
	i := off - int64(b.Base)
	if i < 0 || i+int64(n) > int64(len(b.Data)) {
		return nil, &RangeError{Op: "host access", Addr: uint32(off), Len: int64(n)}
	}
	return b.Data[i : i+int64(n)], nil
}

func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	s, err := b.slice(off, len(p))
	if err != nil {
		return 0, err
	}
	return copy(p, s), nil
}

func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	s, err := b.slice(off, len(p))
	if err != nil {
		return 0, err
	}
	return copy(s, p), nil
}
