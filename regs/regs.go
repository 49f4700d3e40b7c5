// Package regs describes the NuSPI register block and gives typed 32-bit
// access to it.
package regs

import "fmt"

// Offset is a byte offset from the controller base.
type Offset uint32

// Register offsets. [NuSPI|Register Map]
const (
	SCKDIV    Offset = 0x00
	SCKMODE   Offset = 0x04
	SCKSAMPLE Offset = 0x08
	FORCE     Offset = 0x0C
	CSID      Offset = 0x10
	CSDEF     Offset = 0x14
	CSMODE    Offset = 0x18
	VERSION   Offset = 0x1C
	DCSSCK    Offset = 0x28
	DSCKCS    Offset = 0x2A // upper half of the DCSSCK word
	DINTERCS  Offset = 0x2C
	DINTERXFR Offset = 0x2E // upper half of the DINTERCS word
	FMT       Offset = 0x40
	TXDATA    Offset = 0x48
	RXDATA    Offset = 0x4C
	TXMARK    Offset = 0x50
	RXMARK    Offset = 0x54
	FCTRL     Offset = 0x60
	FFMT      Offset = 0x64
	IE        Offset = 0x70
	IP        Offset = 0x74
	FFMT1     Offset = 0x78
	STATUS    Offset = 0x7C
	RXEDGE    Offset = 0x80
	CR        Offset = 0x84

	// Size is the length of the register block in bytes.
	Size = 0x88
)

var names = map[Offset]string{
	SCKDIV:    "SCKDIV",
	SCKMODE:   "SCKMODE",
	SCKSAMPLE: "SCKSAMPLE",
	FORCE:     "FORCE",
	CSID:      "CSID",
	CSDEF:     "CSDEF",
	CSMODE:    "CSMODE",
	VERSION:   "VERSION",
	DCSSCK:    "DCSSCK",
	DSCKCS:    "DSCKCS",
	DINTERCS:  "DINTERCS",
	DINTERXFR: "DINTERXFR",
	FMT:       "FMT",
	TXDATA:    "TXDATA",
	RXDATA:    "RXDATA",
	TXMARK:    "TXMARK",
	RXMARK:    "RXMARK",
	FCTRL:     "FCTRL",
	FFMT:      "FFMT",
	IE:        "IE",
	IP:        "IP",
	FFMT1:     "FFMT1",
	STATUS:    "STATUS",
	RXEDGE:    "RXEDGE",
	CR:        "CR",
}

func (o Offset) String() string {
	if n, ok := names[o]; ok {
		return n
	}
	return fmt.Sprintf("REG(%#02x)", uint32(o))
}

// Word returns the offset of the 32-bit word holding o. The delay registers
// DSCKCS and DINTERXFR are 16-bit fields sharing a word with DCSSCK and
// DINTERCS; a Window accesses the whole word.
func (o Offset) Word() Offset {
	return o &^ 3
}

// Shift returns the bit position of o within its word.
func (o Offset) Shift() uint {
	return uint(o&3) * 8
}

// Register fields.
const (
	SCKModePHA = 1 << 1
	SCKModePOL = 1 << 0

	// FMT
	FMTDirShift = 3
	FMTDir      = 1 << FMTDirShift

	// FCTRL
	FCTRLEnable = 1 << 0

	// IP
	IPTxWatermark = 1 << 0
	IPRxWatermark = 1 << 1

	// STATUS (current revision only)
	StatusBusy    = 1 << 0
	StatusTxFull  = 1 << 4
	StatusRxEmpty = 1 << 5

	// TXDATA/RXDATA bit 31: FIFO full on write side, empty on read side.
	// The legacy revision has no STATUS register and relies on this.
	DataFlag = 1 << 31
)

// Chip-select modes for CSMODE.
const (
	CSModeAuto = 0
	CSModeHold = 2
	CSModeOff  = 3
)

// Transfer directions for FMT.
const (
	DirRx = 0
	DirTx = 1
)

// Reset values programmed by the controller init sequence.
const (
	ResetSCKMODE = 0x0
	ResetFORCE   = 0x3
	ResetFCTRL   = 0x0
	ResetFMT     = 0x80008 // 8 bit frames, single lane, MSB first, TX
	ResetFFMT    = 0x30007
	ResetRXEDGE  = 0x0
)

// LegacyVersionMax is the highest VERSION value of the legacy revision.
// Controllers reporting a greater value have the STATUS register.
const LegacyVersionMax = 0x10100

// Window is a 32-bit register block. Implementations perform exactly one
// aligned access to off.Word() per call and never cache values.
type Window interface {
	Read32(off Offset) uint32
	Write32(off Offset, v uint32)
}
