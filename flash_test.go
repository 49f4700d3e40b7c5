package nuload

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/gentam/nuload/nuspi"
	"github.com/gentam/nuload/sim"
)

const testFlashSize = 1 << 20

// newTestFlash returns a probed flash on a fresh simulated controller.
func newTestFlash(t *testing.T, opts sim.Options, fopts ...FlashOption) (*Flash, *sim.Device) {
	t.Helper()
	if opts.Size == 0 {
		opts.Size = testFlashSize
	}
	d := sim.New(opts)
	f := NewFlash(nuspi.New(d, nuspi.WithBudget(100)), fopts...)
	if _, err := f.Probe(); err != nil {
		t.Fatalf("Probe() = %v", err)
	}
	return f, d
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i>>8)
	}
	return b
}

func TestProbe(t *testing.T) {
	for _, v := range []uint32{sim.VersionCurrent, sim.VersionLegacy} {
		d := sim.New(sim.Options{Version: v, Size: testFlashSize, StaleRx: 3})
		f := NewFlash(nuspi.New(d))

		id, err := f.Probe()
		if err != nil {
			t.Fatalf("version %#x: Probe() = %v", v, err)
		}
		if id != 0x1840EF {
			t.Errorf("version %#x: ID = %#x, want 0x1840EF", v, uint32(id))
		}
		if name := id.Name(); name != "Winbond W25Q128JV" {
			t.Errorf("Name() = %q", name)
		}
		if d.Flash.Resets != 1 {
			t.Errorf("chip reset %d times, want 1", d.Flash.Resets)
		}
		if d.ChipSelected() {
			t.Error("chip still selected after probe")
		}

		// Probing twice yields the same result.
		id2, err := f.Probe()
		if err != nil || id2 != id {
			t.Errorf("second Probe() = %v, %v", id2, err)
		}
	}
}

func TestProbeUnlocks(t *testing.T) {
	f, d := newTestFlash(t, sim.Options{Protected: true})
	if s := d.Flash.Status(); s != 0 {
		t.Fatalf("status = %#x after probe, want 0", s)
	}
	if err := f.Write(0, []byte{0x5A}); err != nil {
		t.Fatal(err)
	}
	if d.Flash.Mem[0] != 0x5A {
		t.Error("write to an unlocked chip had no effect")
	}
}

func TestProbeTimeout(t *testing.T) {
	d := sim.New(sim.Options{Size: testFlashSize, StuckTx: true})
	f := NewFlash(nuspi.New(d, nuspi.WithBudget(10)))

	_, err := f.Probe()
	if !errors.Is(err, nuspi.ErrInit|nuspi.ErrTxTimeout) {
		t.Errorf("Probe() = %v, want init|tx timeout", err)
	}
	if d.ChipSelected() {
		t.Error("chip-select not released after failure")
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		addr uint32
		n    int
	}{
		{"byte", 0x000000, 1},
		{"page", 0x000100, PageSize},
		{"unaligned", 0x0012F3, 1000},
		{"block tail", 0x01FF80, 0x100},
		{"empty", 0x000400, 0},
	}
	for _, v := range []uint32{sim.VersionCurrent, sim.VersionLegacy} {
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/%#x", tt.name, v), func(t *testing.T) {
				f, _ := newTestFlash(t, sim.Options{Version: v, BusyPolls: 3})
				want := pattern(tt.n)
				if err := f.Write(tt.addr, want); err != nil {
					t.Fatalf("Write() = %v", err)
				}
				got := make([]byte, tt.n)
				if err := f.Read(tt.addr, got); err != nil {
					t.Fatalf("Read() = %v", err)
				}
				if !bytes.Equal(got, want) {
					t.Errorf("read back differs from written data")
				}
			})
		}
	}
}

func TestErase(t *testing.T) {
	f, d := newTestFlash(t, sim.Options{BusyPolls: 2})
	for i := range d.Flash.Mem {
		d.Flash.Mem[i] = 0
	}

	if err := f.Erase(0x10000, 0x40000); err != nil {
		t.Fatalf("Erase() = %v", err)
	}

	ops := d.Flash.Erases()
	want := []uint32{0x10000, 0x20000, 0x30000}
	if len(ops) != len(want) {
		t.Fatalf("executed %d erases, want %d", len(ops), len(want))
	}
	for i, o := range ops {
		if o.Addr != want[i] || o.Len != BlockSize {
			t.Errorf("erase %d = %+v, want 64KB at %#x", i, o, want[i])
		}
	}

	buf := make([]byte, 0x30000)
	if err := f.Read(0x10000, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{0xFF}, len(buf))) {
		t.Error("erased range does not read as 0xFF")
	}
	if d.Flash.Mem[0xFFFF] != 0 || d.Flash.Mem[0x40000] != 0 {
		t.Error("erase touched bytes outside the range")
	}
}

func TestErasePartialBlock(t *testing.T) {
	f, d := newTestFlash(t, sim.Options{})

	if err := f.Erase(0, BlockSize-1); err != nil {
		t.Fatal(err)
	}
	if err := f.Erase(0x20000, 0x20000); err != nil {
		t.Fatal(err)
	}
	if err := f.Erase(0, BlockSize+0x8000); err != nil {
		t.Fatal(err)
	}
	if ops := d.Flash.Erases(); len(ops) != 1 || ops[0].Addr != 0 {
		t.Errorf("erases = %+v, want one at 0", ops)
	}
}

func TestEraseInvalidRange(t *testing.T) {
	f, d := newTestFlash(t, sim.Options{})

	for _, r := range [][2]uint32{{0x20000, 0x10000}, {0, AddrLimit + BlockSize}} {
		var re *RangeError
		if err := f.Erase(r[0], r[1]); !errors.As(err, &re) {
			t.Errorf("Erase(%#x, %#x) = %v, want RangeError", r[0], r[1], err)
		}
	}
	if len(d.Flash.Erases()) != 0 {
		t.Error("invalid range was erased")
	}
}

func TestEraseStopsAtFailure(t *testing.T) {
	f, d := newTestFlash(t, sim.Options{StuckWIP: true}, WithWIPBudget(10))

	err := f.Erase(0, 4*BlockSize)
	if !errors.Is(err, nuspi.ErrErase|nuspi.ErrWIP) {
		t.Errorf("Erase() = %v, want erase|wip", err)
	}
	if n := len(d.Flash.Erases()); n != 1 {
		t.Errorf("executed %d erases, want 1", n)
	}
	if d.ChipSelected() {
		t.Error("chip-select not released after failure")
	}
}

func TestEraseSector(t *testing.T) {
	f, d := newTestFlash(t, sim.Options{})
	if err := f.EraseSector(0x3456); err != nil {
		t.Fatal(err)
	}
	if ops := d.Flash.Erases(); len(ops) != 1 || ops[0].Len != SectorSize || ops[0].Addr != 0x3456 {
		t.Errorf("erases = %+v", ops)
	}
	var re *RangeError
	if err := f.EraseSector(AddrLimit); !errors.As(err, &re) {
		t.Errorf("EraseSector(AddrLimit) = %v, want RangeError", err)
	}
}

func TestWritePageBoundaries(t *testing.T) {
	f, d := newTestFlash(t, sim.Options{})

	if err := f.Write(0x1F0, pattern(544)); err != nil {
		t.Fatal(err)
	}

	want := []sim.Op{
		{Addr: 0x1F0, Len: 16},
		{Addr: 0x200, Len: 256},
		{Addr: 0x300, Len: 256},
		{Addr: 0x400, Len: 16},
	}
	got := d.Flash.Programs()
	if len(got) != len(want) {
		t.Fatalf("executed %d page programs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Addr != want[i].Addr || got[i].Len != want[i].Len {
			t.Errorf("program %d = %#x+%d, want %#x+%d",
				i, got[i].Addr, got[i].Len, want[i].Addr, want[i].Len)
		}
		if got[i].Addr/PageSize != (got[i].Addr+uint32(got[i].Len)-1)/PageSize {
			t.Errorf("program %d crosses a page boundary", i)
		}
	}
}

func TestWriteTimeout(t *testing.T) {
	f, d := newTestFlash(t, sim.Options{StuckWIP: true}, WithWIPBudget(10))

	err := f.Write(0x100, pattern(PageSize*2))
	if !errors.Is(err, nuspi.ErrWrite|nuspi.ErrWIP) {
		t.Errorf("Write() = %v, want write|wip", err)
	}
	if n := len(d.Flash.Programs()); n != 1 {
		t.Errorf("executed %d page programs, want 1", n)
	}
}

func TestOutOfRange(t *testing.T) {
	f, d := newTestFlash(t, sim.Options{})

	var re *RangeError
	if err := f.Write(AddrLimit-4, pattern(8)); !errors.As(err, &re) {
		t.Errorf("Write() = %v, want RangeError", err)
	} else if re.Op != "write" || re.Addr != AddrLimit-4 || re.Len != 8 {
		t.Errorf("RangeError = %+v", re)
	}
	if err := f.Read(AddrLimit, make([]byte, 1)); !errors.As(err, &re) {
		t.Errorf("Read() = %v, want RangeError", err)
	}
	if len(d.Flash.Programs()) != 0 {
		t.Error("out of range write reached the chip")
	}

	// The last byte of the address space is still addressable.
	if err := f.Write(AddrLimit-1, []byte{0}); err != nil {
		t.Errorf("Write() at the last address = %v", err)
	}
}

func TestReadStatusRegister(t *testing.T) {
	f, d := newTestFlash(t, sim.Options{})
	d.Flash.Protect()

	sr, err := f.ReadStatusRegister()
	if err != nil {
		t.Fatal(err)
	}
	if sr.BlockProtect() != 7 || sr.Busy() || sr.WriteEnabled() {
		t.Errorf("status register = %s", sr)
	}
}

func TestStatusRegisterString(t *testing.T) {
	tests := []struct {
		sr   StatusRegister
		want string
	}{
		{0x00, "00000000"},
		{0x1F, "00011111 BP=7,WEL,BUSY"},
		{0xE0, "11100000 SRP,SEC,TB"},
	}
	for _, tt := range tests {
		if s := tt.sr.String(); s != tt.want {
			t.Errorf("StatusRegister(%#x) = %q, want %q", byte(tt.sr), s, tt.want)
		}
	}
}

func TestID(t *testing.T) {
	tests := []struct {
		b        [3]byte
		str      string
		name     string
		capacity int
		valid    bool
	}{
		{[3]byte{0xEF, 0x40, 0x18}, "EF4018", "Winbond W25Q128JV", 16 << 20, true},
		{[3]byte{0xEF, 0x40, 0x19}, "EF4019", "Winbond W25Q256FV", 32 << 20, true},
		{[3]byte{0x20, 0xBA, 0x16}, "20BA16", "Micron N25Q 32Mb", 4 << 20, true},
		{[3]byte{0xEF, 0x60, 0x17}, "EF6017", "Winbond (unknown part)", 8 << 20, true},
		{[3]byte{0x12, 0x34, 0x05}, "123405", "", 0, true},
		{[3]byte{0xFF, 0xFF, 0xFF}, "FFFFFF", "", 0, false},
		{[3]byte{}, "000000", "", 0, false},
	}
	for _, tt := range tests {
		id := IDFromBytes(tt.b)
		if id.Bytes() != tt.b {
			t.Errorf("%s: Bytes() = % X", tt.str, id.Bytes())
		}
		if s := id.String(); s != tt.str {
			t.Errorf("String() = %q, want %q", s, tt.str)
		}
		if n := id.Name(); n != tt.name {
			t.Errorf("%s: Name() = %q, want %q", tt.str, n, tt.name)
		}
		if c := id.Capacity(); c != tt.capacity {
			t.Errorf("%s: Capacity() = %d, want %d", tt.str, c, tt.capacity)
		}
		if v := id.Valid(); v != tt.valid {
			t.Errorf("%s: Valid() = %t", tt.str, v)
		}
	}
	if id := IDFromBytes([3]byte{0xEF, 0x40, 0x18}); id.Manufacturer() != 0xEF || id.MemoryType() != 0x40 || id.CapacityCode() != 0x18 {
		t.Errorf("field decoding of %s failed", id)
	}
}
