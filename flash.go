package nuload

import (
	"fmt"
	"strings"

	"github.com/gentam/nuload/nuspi"
)

const (
	PageSize   = 256      // page program unit
	SectorSize = 4 << 10  // sector erase unit
	BlockSize  = 64 << 10 // block erase unit

	// AddrLimit is the end of the 3-byte address space.
	AddrLimit = 1 << 24
)

// DefaultWIPBudget bounds the status reads WaitWhileBusy performs. A 64KB
// block erase is the slowest operation and takes up to 2s [W25Q128|tBE2].
const DefaultWIPBudget = 1 << 24

// Flash issues SPI NOR commands through a NuSPI controller. Like the
// controller it holds no state between operations.
type Flash struct {
	c         *nuspi.Controller
	wipBudget int
}

type FlashOption func(*Flash)

// WithWIPBudget sets how many status reads WaitWhileBusy may spend.
func WithWIPBudget(n int) FlashOption {
	return func(f *Flash) { f.wipBudget = n }
}

func NewFlash(c *nuspi.Controller, opts ...FlashOption) *Flash {
	f := &Flash{
		c:         c,
		wipBudget: DefaultWIPBudget,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Flash commands:
//   - [W25Q128|8.1.2 Instruction Set Table 1]
//   - [W25Q256FV|8.1.2 Instruction Set Table 1]
const (
	flashCmdWriteStatusRegister = 0x01
	flashCmdPageProgram         = 0x02
	flashCmdRead                = 0x03
	flashCmdReadStatusRegister  = 0x05
	flashCmdWriteEnable         = 0x06
	flashCmdErase4KB            = 0x20 // Sector Erase (4KB)
	flashCmdEnableReset         = 0x66
	flashCmdResetDevice         = 0x99
	flashCmdReadID              = 0x9F
	flashCmdErase64KB           = 0xD8 // Block Erase (64KB)
)

// tx wraps a command frame with chip-select held.
func (f *Flash) tx(frame func() error) error {
	f.c.SetChipSelect(true)
	defer f.c.SetChipSelect(false)
	return frame()
}

func (f *Flash) send(b ...byte) error {
	for _, v := range b {
		if err := f.c.TransmitByte(v); err != nil {
			return err
		}
	}
	return nil
}

// sendAddr sends cmd followed by a 24 bit big-endian address.
func (f *Flash) sendAddr(cmd byte, addr uint32) error {
	return f.send(cmd, byte(addr>>16), byte(addr>>8), byte(addr))
}

// command sends a complete write-only frame and lets it drain before
// chip-select is released.
func (f *Flash) command(cmd byte, payload ...byte) error {
	return f.tx(func() error {
		if err := f.send(cmd); err != nil {
			return err
		}
		if err := f.send(payload...); err != nil {
			return err
		}
		return f.c.WaitIdle()
	})
}

// Probe initializes the controller, resets the chip, clears its block
// protection and returns its JEDEC ID.
func (f *Flash) Probe() (ID, error) {
	id, err := f.probe()
	if err != nil {
		return 0, nuspi.ErrInit.With(err)
	}
	return id, nil
}

func (f *Flash) probe() (ID, error) {
	if err := f.c.Init(); err != nil {
		return 0, err
	}
	if err := f.command(flashCmdEnableReset); err != nil {
		return 0, err
	}
	if err := f.command(flashCmdResetDevice); err != nil {
		return 0, err
	}
	// unlock: clear BP bits
	if err := f.command(flashCmdWriteStatusRegister, 0x00); err != nil {
		return 0, err
	}

	var b [3]byte
	err := f.tx(func() error {
		if err := f.send(flashCmdReadID); err != nil {
			return err
		}
		if err := f.c.WaitIdle(); err != nil {
			return err
		}
		for i := range b {
			v, err := f.c.ReceiveByte()
			if err != nil {
				return err
			}
			b[i] = v
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return IDFromBytes(b), nil
}

// WaitWhileBusy polls the status register until the write-in-progress bit
// clears. Failures carry nuspi.ErrWIP.
func (f *Flash) WaitWhileBusy() error {
	err := f.tx(func() error {
		if err := f.send(flashCmdReadStatusRegister); err != nil {
			return err
		}
		if err := f.c.WaitIdle(); err != nil {
			return err
		}
		for i := 0; i < f.wipBudget; i++ {
			v, err := f.c.ReceiveByte()
			if err != nil {
				return err
			}
			if !StatusRegister(v).Busy() {
				return nil
			}
		}
		return nuspi.ErrWIP
	})
	if err != nil {
		return nuspi.ErrWIP.With(err)
	}
	return nil
}

// ReadStatusRegister reads the status register once.
func (f *Flash) ReadStatusRegister() (StatusRegister, error) {
	var sr [1]byte
	if err := f.c.Tx([]byte{flashCmdReadStatusRegister}, sr[:]); err != nil {
		return 0, err
	}
	return StatusRegister(sr[0]), nil
}

func (f *Flash) writeEnable() error {
	return f.command(flashCmdWriteEnable)
}

func (f *Flash) erase(cmd byte, addr uint32) error {
	if err := f.writeEnable(); err != nil {
		return err
	}
	if err := f.tx(func() error {
		if err := f.sendAddr(cmd, addr); err != nil {
			return err
		}
		return f.c.WaitIdle()
	}); err != nil {
		return err
	}
	return f.WaitWhileBusy()
}

// Erase erases the 64KB blocks in [start, end). A trailing partial block is
// left untouched. Erasing stops at the first failing block.
func (f *Flash) Erase(start, end uint32) error {
	if end < start || end > AddrLimit {
		return &RangeError{Op: "erase", Addr: start, Len: int64(end) - int64(start)}
	}

	n := (end - start) / BlockSize
	for i := uint32(0); i < n; i++ {
		if err := f.erase(flashCmdErase64KB, start+i*BlockSize); err != nil {
			return nuspi.ErrErase.With(err)
		}
	}
	return nil
}

// EraseSector erases the 4KB sector containing addr.
func (f *Flash) EraseSector(addr uint32) error {
	if addr >= AddrLimit {
		return &RangeError{Op: "erase", Addr: addr, Len: SectorSize}
	}
	if err := f.erase(flashCmdErase4KB, addr); err != nil {
		return nuspi.ErrErase.With(err)
	}
	return nil
}

// pageProgram programs data, which must not cross a page boundary.
func (f *Flash) pageProgram(addr uint32, data []byte) error {
	if err := f.writeEnable(); err != nil {
		return err
	}
	if err := f.tx(func() error {
		if err := f.sendAddr(flashCmdPageProgram, addr); err != nil {
			return err
		}
		if err := f.send(data...); err != nil {
			return err
		}
		return f.c.WaitIdle()
	}); err != nil {
		return err
	}
	return f.WaitWhileBusy()
}

// Write programs data at offset, splitting it so that no page program
// crosses a page boundary. The target range must be erased.
func (f *Flash) Write(offset uint32, data []byte) error {
	if err := checkRange("write", offset, len(data)); err != nil {
		return err
	}

	for len(data) > 0 {
		n := min(len(data), PageSize-int(offset%PageSize))
		if err := f.pageProgram(offset, data[:n]); err != nil {
			return nuspi.ErrWrite.With(err)
		}
		offset += uint32(n)
		data = data[n:]
	}
	return nil
}

// Read fills buf with the flash contents at offset.
func (f *Flash) Read(offset uint32, buf []byte) error {
	if err := checkRange("read", offset, len(buf)); err != nil {
		return err
	}

	err := f.tx(func() error {
		if err := f.sendAddr(flashCmdRead, offset); err != nil {
			return err
		}
		if err := f.c.WaitIdle(); err != nil {
			return err
		}
		for i := range buf {
			v, err := f.c.ReceiveByte()
			if err != nil {
				return err
			}
			buf[i] = v
		}
		return nil
	})
	if err == nil {
		err = f.WaitWhileBusy()
	}
	if err != nil {
		return nuspi.ErrRead.With(err)
	}
	return nil
}

func checkRange(op string, addr uint32, n int) error {
	if int64(addr)+int64(n) > AddrLimit {
		return &RangeError{Op: op, Addr: addr, Len: int64(n)}
	}
	return nil
}

// RangeError reports an access outside the 3-byte address space or host
// buffer.
type RangeError struct {
	Op   string
	Addr uint32
	Len  int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s of %d bytes at 0x%06X is out of range", e.Op, e.Len, e.Addr)
}

// StatusRegister represents the status register 1 of the flash chip.
//
//	Bits| [W25Q128|7.1 Status Registers]
//	----+-------------------------------
//	7   | SRP: Status Register Protect
//	6   | SEC: Sector protect
//	5   | TB: Top/Bottom protect
//	4:2 | BP2-0: Block Protect bit 2-0
//	1   | WEL: Write Enable Latch
//	0   | BUSY: Erase/Write in progress
type StatusRegister byte

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) SectorProtect() bool         { return sr&(1<<6) != 0 }
func (sr StatusRegister) TopBottom() bool             { return sr&(1<<5) != 0 }
func (sr StatusRegister) BlockProtect() byte          { return byte(sr>>2) & 0x7 }
func (sr StatusRegister) WriteEnabled() bool          { return sr&(1<<1) != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&(1<<0) != 0 }

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	s := []string{}
	if sr.StatusRegisterProtect() {
		s = append(s, "SRP")
	}
	if sr.SectorProtect() {
		s = append(s, "SEC")
	}
	if sr.TopBottom() {
		s = append(s, "TB")
	}
	if bp := sr.BlockProtect(); bp != 0 {
		s = append(s, fmt.Sprintf("BP=%d", bp))
	}
	if sr.WriteEnabled() {
		s = append(s, "WEL")
	}
	if sr.Busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}
