// Package sim models a NuSPI controller of either hardware revision with a
// SPI NOR flash chip attached. A Device implements regs.Window and can be
// driven by the real controller and flash code.
package sim

import "github.com/gentam/nuload/regs"

// VERSION register values.
const (
	VersionLegacy  = 0x00010100
	VersionCurrent = 0x00010200
)

// Default chip: Winbond W25Q128JV, 16 MiB.
var DefaultID = [3]byte{0xEF, 0x40, 0x18}

const DefaultSize = 16 << 20

type Options struct {
	Version uint32 // defaults to VersionCurrent
	ID      [3]byte
	Size    int

	BusyPolls int  // status reads reporting WIP after program/erase
	StuckWIP  bool // the chip never finishes
	StuckTx   bool // TX FIFO never drains
	DropRx    bool // received bytes never reach the RX FIFO
	StuckBusy bool // controller never goes idle
	Protected bool // block protect bits set at power-on
	StaleRx   int  // bytes waiting in the RX FIFO at power-on
}

// Device is a simulated controller with its flash chip.
type Device struct {
	opts Options
	reg  [regs.Size / 4]uint32
	rx   []byte

	Flash *Flash
}

var _ regs.Window = (*Device)(nil)

func New(opts Options) *Device {
	if opts.Version == 0 {
		opts.Version = VersionCurrent
	}
	if opts.ID == [3]byte{} {
		opts.ID = DefaultID
	}
	if opts.Size == 0 {
		opts.Size = DefaultSize
	}

	d := &Device{
		opts:  opts,
		Flash: NewFlash(opts.ID, opts.Size),
	}
	d.Flash.BusyPolls = opts.BusyPolls
	d.Flash.StuckWIP = opts.StuckWIP
	if opts.Protected {
		d.Flash.Protect()
	}
	for i := 0; i < opts.StaleRx; i++ {
		d.rx = append(d.rx, 0xA5)
	}

	// Boot state: executing from flash.
	d.set(regs.FCTRL, regs.FCTRLEnable)
	d.set(regs.FMT, regs.ResetFMT)
	d.set(regs.CSMODE, regs.CSModeAuto)
	return d
}

func (d *Device) get(off regs.Offset) uint32    { return d.reg[off.Word()/4] }
func (d *Device) set(off regs.Offset, v uint32) { d.reg[off.Word()/4] = v }

// Reg returns the stored value of a plain register.
func (d *Device) Reg(off regs.Offset) uint32 {
	return d.get(off)
}

func (d *Device) legacy() bool {
	return d.opts.Version <= regs.LegacyVersionMax
}

// RxPending returns the number of bytes in the RX FIFO.
func (d *Device) RxPending() int {
	return len(d.rx)
}

func (d *Device) Read32(off regs.Offset) uint32 {
	switch off {
	case regs.VERSION:
		return d.opts.Version
	case regs.STATUS:
		if d.legacy() {
			return 0
		}
		var s uint32
		if d.opts.StuckBusy {
			s |= regs.StatusBusy
		}
		if d.opts.StuckTx {
			s |= regs.StatusTxFull
		}
		if len(d.rx) == 0 {
			s |= regs.StatusRxEmpty
		}
		return s
	case regs.IP:
		if d.opts.StuckBusy {
			return 0
		}
		return regs.IPTxWatermark
	case regs.TXDATA:
		if d.opts.StuckTx {
			return regs.DataFlag
		}
		return 0
	case regs.RXDATA:
		if len(d.rx) == 0 {
			return regs.DataFlag
		}
		b := d.rx[0]
		d.rx = d.rx[1:]
		return uint32(b)
	}
	return d.get(off)
}

func (d *Device) Write32(off regs.Offset, v uint32) {
	switch off {
	case regs.VERSION, regs.STATUS, regs.RXDATA, regs.IP:
		return
	case regs.TXDATA:
		d.transmit(byte(v))
		return
	case regs.CSMODE:
		d.set(off, v)
		if v != regs.CSModeHold {
			d.Flash.deselect()
		}
		return
	}
	d.set(off, v)
}

func (d *Device) transmit(b byte) {
	if d.opts.StuckTx {
		return
	}
	in := d.Flash.shift(b)
	if d.get(regs.FMT)&regs.FMTDir>>regs.FMTDirShift == regs.DirRx && !d.opts.DropRx {
		d.rx = append(d.rx, in)
	}
	if d.get(regs.CSMODE) != regs.CSModeHold {
		d.Flash.deselect()
	}
}

// Passthrough reports whether the controller is in memory-mapped mode.
func (d *Device) Passthrough() bool {
	return d.get(regs.FCTRL)&regs.FCTRLEnable != 0
}

// ChipSelected reports whether chip-select is asserted.
func (d *Device) ChipSelected() bool {
	return d.Flash.Selected()
}
