package nuspi

import "github.com/gentam/nuload/regs"

// Revision identifies a controller hardware generation.
type Revision int

const (
	// Legacy controllers have no STATUS register. FIFO state is signalled
	// through bit 31 of TXDATA/RXDATA and the TX watermark interrupt.
	Legacy Revision = iota
	// Current controllers report busy, TX full and RX empty in STATUS.
	Current
)

func (r Revision) String() string {
	switch r {
	case Legacy:
		return "legacy"
	case Current:
		return "current"
	}
	return "unknown"
}

// RevisionOf classifies a VERSION register value.
func RevisionOf(version uint32) Revision {
	if version > regs.LegacyVersionMax {
		return Current
	}
	return Legacy
}

// revision holds the checks that differ between hardware generations. Each
// method performs a single poll step.
type revision interface {
	txReady(w regs.Window) bool
	rxPop(w regs.Window) (uint32, bool)
	idle(w regs.Window) bool
	rxDrained(w regs.Window) bool
}

type currentRev struct{}

func (currentRev) txReady(w regs.Window) bool {
	return w.Read32(regs.STATUS)&regs.StatusTxFull == 0
}

func (currentRev) rxPop(w regs.Window) (uint32, bool) {
	if w.Read32(regs.STATUS)&regs.StatusRxEmpty != 0 {
		return 0, false
	}
	return w.Read32(regs.RXDATA), true
}

func (currentRev) idle(w regs.Window) bool {
	return w.Read32(regs.STATUS)&regs.StatusBusy == 0
}

func (currentRev) rxDrained(w regs.Window) bool {
	w.Read32(regs.RXDATA)
	return w.Read32(regs.STATUS)&regs.StatusRxEmpty != 0
}

type legacyRev struct{}

func (legacyRev) txReady(w regs.Window) bool {
	return w.Read32(regs.TXDATA)&regs.DataFlag == 0
}

func (legacyRev) rxPop(w regs.Window) (uint32, bool) {
	v := w.Read32(regs.RXDATA)
	return v, v&regs.DataFlag == 0
}

func (legacyRev) idle(w regs.Window) bool {
	return w.Read32(regs.IP)&regs.IPTxWatermark != 0
}

func (legacyRev) rxDrained(w regs.Window) bool {
	return w.Read32(regs.RXDATA)&regs.DataFlag != 0
}
