package nuload

import (
	"fmt"
	"io"

	"github.com/gentam/nuload/nuspi"
	"github.com/gentam/nuload/regs"
	"periph.io/x/host/v3"
)

// DefaultMaxTransfer is the largest buffer handed to a single Write or Read
// request.
const DefaultMaxTransfer = 64 << 10

// Device plays the host side: it turns whole-image operations into loader
// requests against one controller.
type Device struct {
	w      regs.Window
	closer io.Closer

	Loader      Loader
	MaxTransfer int
}

// NewDevice returns a Device driving the controller behind w.
func NewDevice(w regs.Window) *Device {
	d := &Device{
		w:           w,
		MaxTransfer: DefaultMaxTransfer,
	}
	if c, ok := w.(io.Closer); ok {
		d.closer = c
	}
	return d
}

// Open maps the controller registers at the physical address base.
func Open(base uint64) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host initialization failed: %w", err)
	}

	m, err := regs.Map(base)
	if err != nil {
		return nil, err
	}
	return NewDevice(m), nil
}

// Close releases the register mapping, if any.
func (d *Device) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Window returns the register window requests are dispatched to.
func (d *Device) Window() regs.Window {
	return d.w
}

func (d *Device) dispatch(mem Memory, req Request) int32 {
	return d.Loader.Dispatch(d.w, mem, req)
}

// Probe returns the JEDEC ID of the attached chip.
func (d *Device) Probe() (ID, error) {
	r := d.dispatch(nil, Request{Op: OpProbe})
	if r < 0 {
		return 0, nuspi.Code(uint32(r))
	}
	return ID(r), nil
}

// Erase erases the 64KB blocks in [start, end).
func (d *Device) Erase(start, end uint32) error {
	return CodeOf(d.dispatch(nil, Request{Op: OpErase, Param1: start, Param2: end}))
}

// Write programs data at offset in transfers of at most MaxTransfer bytes.
func (d *Device) Write(offset uint32, data []byte) error {
	buf := &Buffer{}
	for len(data) > 0 {
		n := min(len(data), d.maxTransfer())
		buf.Data = data[:n]
		req := Request{Op: OpWrite, Param1: buf.Base, Param2: offset, Param3: uint32(n)}
		if err := CodeOf(d.dispatch(buf, req)); err != nil {
			return fmt.Errorf("write at 0x%06X: %w", offset, err)
		}
		offset += uint32(n)
		data = data[n:]
	}
	return nil
}

// Read reads n bytes at offset.
func (d *Device) Read(offset uint32, n int) ([]byte, error) {
	out := make([]byte, n)
	buf := &Buffer{}
	for off := 0; off < n; {
		chunk := min(n-off, d.maxTransfer())
		buf.Data = out[off : off+chunk]
		req := Request{Op: OpRead, Param1: buf.Base, Param2: offset, Param3: uint32(chunk)}
		if err := CodeOf(d.dispatch(buf, req)); err != nil {
			return nil, fmt.Errorf("read at 0x%06X: %w", offset, err)
		}
		offset += uint32(chunk)
		off += chunk
	}
	return out, nil
}

// Verify reads back len(data) bytes at offset and compares checksums.
func (d *Device) Verify(offset uint32, data []byte) error {
	rb, err := d.Read(offset, len(data))
	if err != nil {
		return err
	}
	if want, got := Checksum(data), Checksum(rb); want != got {
		return &VerifyError{Addr: offset, Len: len(data), Want: want, Got: got}
	}
	return nil
}

// VerifyError reports a read-back mismatch.
type VerifyError struct {
	Addr      uint32
	Len       int
	Want, Got uint32
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify of %d bytes at 0x%06X failed: crc32 %08X, read back %08X",
		e.Len, e.Addr, e.Want, e.Got)
}

func (d *Device) maxTransfer() int {
	if d.MaxTransfer <= 0 {
		return DefaultMaxTransfer
	}
	return d.MaxTransfer
}
