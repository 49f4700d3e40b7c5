package sim

// Flash models a W25Q-class SPI NOR chip at the frame level: bytes arrive
// while the chip is selected and commands take effect when it is
// deselected, like the real part.
type Flash struct {
	ID  [3]byte // JEDEC ID in wire order
	Mem []byte

	// BusyPolls is the number of status reads that report WIP after a
	// program or erase.
	BusyPolls int
	// StuckWIP keeps the WIP bit set forever once a program or erase
	// has started.
	StuckWIP bool

	status       byte
	busy         int
	stuck        bool
	resetEnabled bool

	selected bool
	frame    []byte

	// Ops lists every program and erase the chip executed.
	Ops    []Op
	Resets int
}

// Op is an executed program or erase.
type Op struct {
	Cmd  byte
	Addr uint32
	Len  int
}

// [W25Q128|8.1.2 Instruction Set Table 1]
const (
	cmdWriteStatus  = 0x01
	cmdPageProgram  = 0x02
	cmdRead         = 0x03
	cmdWriteDisable = 0x04
	cmdReadStatus   = 0x05
	cmdWriteEnable  = 0x06
	cmdErase4KB     = 0x20
	cmdEnableReset  = 0x66
	cmdResetDevice  = 0x99
	cmdReadID       = 0x9F
	cmdErase64KB    = 0xD8
)

const (
	srWIP      = 1 << 0
	srWEL      = 1 << 1
	srBPMask   = 0x1C
	srWritable = 0xFC
)

// NewFlash returns an erased chip of size bytes.
func NewFlash(id [3]byte, size int) *Flash {
	f := &Flash{
		ID:  id,
		Mem: make([]byte, size),
	}
	for i := range f.Mem {
		f.Mem[i] = 0xFF
	}
	return f
}

// Protect sets all block-protect bits.
func (f *Flash) Protect() {
	f.status |= srBPMask
}

// Status returns the status register without side effects.
func (f *Flash) Status() byte {
	s := f.status
	if f.isBusy() {
		s |= srWIP
	}
	return s
}

// Selected reports whether a frame is open.
func (f *Flash) Selected() bool {
	return f.selected
}

func (f *Flash) selectChip() {
	if f.selected {
		return
	}
	f.selected = true
	f.frame = f.frame[:0]
}

// shift clocks one byte in and returns the byte clocked out.
func (f *Flash) shift(in byte) byte {
	f.selectChip()
	f.frame = append(f.frame, in)

	n := len(f.frame)
	switch f.frame[0] {
	case cmdReadID:
		if n >= 2 && n <= 4 {
			return f.ID[n-2]
		}
	case cmdReadStatus:
		if n >= 2 {
			s := f.Status()
			if f.busy > 0 {
				f.busy--
			}
			return s
		}
	case cmdRead:
		if n > 4 && !f.isBusy() {
			return f.Mem[f.index(f.addr()+uint32(n-5))]
		}
	}
	return 0xFF
}

func (f *Flash) isBusy() bool {
	return f.busy > 0 || f.stuck
}

func (f *Flash) addr() uint32 {
	return uint32(f.frame[1])<<16 | uint32(f.frame[2])<<8 | uint32(f.frame[3])
}

func (f *Flash) index(a uint32) int {
	return int(a) % len(f.Mem)
}

// deselect closes the frame and executes the command it carried.
func (f *Flash) deselect() {
	if !f.selected {
		return
	}
	f.selected = false
	if len(f.frame) == 0 {
		return
	}

	cmd := f.frame[0]
	resetEnabled := f.resetEnabled
	f.resetEnabled = false
	if f.isBusy() {
		return
	}

	switch cmd {
	case cmdWriteEnable:
		f.status |= srWEL
	case cmdWriteDisable:
		f.status &^= srWEL
	case cmdEnableReset:
		f.resetEnabled = true
	case cmdResetDevice:
		if resetEnabled {
			f.status &^= srWEL
			f.Resets++
		}
	case cmdWriteStatus:
		if len(f.frame) >= 2 {
			f.status = f.frame[1] & srWritable
		}
	case cmdPageProgram:
		if len(f.frame) > 4 {
			f.program(f.addr(), f.frame[4:])
		}
	case cmdErase4KB:
		if len(f.frame) >= 4 {
			f.erase(cmd, f.addr(), 4<<10)
		}
	case cmdErase64KB:
		if len(f.frame) >= 4 {
			f.erase(cmd, f.addr(), 64<<10)
		}
	}
}

func (f *Flash) writable() bool {
	ok := f.status&srWEL != 0 && f.status&srBPMask == 0
	f.status &^= srWEL
	return ok
}

// program wraps around within the page, like the real part.
func (f *Flash) program(addr uint32, data []byte) {
	if !f.writable() {
		return
	}
	page := addr &^ 0xFF
	for i, b := range data {
		a := page | (addr+uint32(i))&0xFF
		f.Mem[f.index(a)] &= b
	}
	f.Ops = append(f.Ops, Op{Cmd: cmdPageProgram, Addr: addr, Len: len(data)})
	f.startBusy()
}

func (f *Flash) startBusy() {
	f.busy = f.BusyPolls
	f.stuck = f.StuckWIP
}

func (f *Flash) erase(cmd byte, addr uint32, size uint32) {
	if !f.writable() {
		return
	}
	start := addr &^ (size - 1)
	for a := start; a < start+size; a++ {
		f.Mem[f.index(a)] = 0xFF
	}
	f.Ops = append(f.Ops, Op{Cmd: cmd, Addr: addr, Len: int(size)})
	f.startBusy()
}

// Programs returns the executed page programs.
func (f *Flash) Programs() []Op {
	return f.opsOf(cmdPageProgram)
}

// Erases returns the executed sector and block erases.
func (f *Flash) Erases() []Op {
	var ops []Op
	for _, o := range f.Ops {
		if o.Cmd == cmdErase4KB || o.Cmd == cmdErase64KB {
			ops = append(ops, o)
		}
	}
	return ops
}

func (f *Flash) opsOf(cmd byte) []Op {
	var ops []Op
	for _, o := range f.Ops {
		if o.Cmd == cmd {
			ops = append(ops, o)
		}
	}
	return ops
}
