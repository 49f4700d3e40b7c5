// Package nuspi drives the NuSPI flash controller in software command mode.
//
// A Controller keeps no hardware state of its own. Every primitive reads
// what it needs from the registers, including the hardware revision, so a
// Controller may be created per operation and discarded afterwards.
package nuspi

import (
	"fmt"

	"github.com/gentam/nuload/regs"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

const (
	// DefaultBudget is the number of poll iterations TX, RX and idle waits
	// may spend before giving up.
	DefaultBudget = 5000
	// DefaultDrainBudget bounds the RX FIFO drain in Init.
	DefaultDrainBudget = 1 << 16
)

// Direction is the FMT transfer direction.
type Direction uint32

const (
	Rx Direction = regs.DirRx
	Tx Direction = regs.DirTx
)

type Controller struct {
	w regs.Window

	budget      int
	drainBudget int

	mode     spi.Mode
	busClock physic.Frequency
	sck      physic.Frequency
}

var _ conn.Conn = (*Controller)(nil)

type Option func(*Controller)

// WithBudget sets the poll budget of the TX, RX and idle waits.
func WithBudget(n int) Option {
	return func(c *Controller) { c.budget = n }
}

// WithDrainBudget sets the poll budget of the RX drain in Init.
func WithDrainBudget(n int) Option {
	return func(c *Controller) { c.drainBudget = n }
}

// WithMode sets the clock polarity and phase programmed by Init.
func WithMode(m spi.Mode) Option {
	return func(c *Controller) { c.mode = m }
}

// WithClock makes Init program SCKDIV so that the bus runs at most at sck
// given the controller input clock in. SCKDIV is left untouched otherwise.
func WithClock(in, sck physic.Frequency) Option {
	return func(c *Controller) {
		c.busClock = in
		c.sck = sck
	}
}

func New(w regs.Window, opts ...Option) *Controller {
	c := &Controller{
		w:           w,
		budget:      DefaultBudget,
		drainBudget: DefaultDrainBudget,
		mode:        spi.Mode0,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Window returns the register window the controller drives.
func (c *Controller) Window() regs.Window {
	return c.w
}

// Revision reads the VERSION register.
func (c *Controller) Revision() Revision {
	return RevisionOf(c.w.Read32(regs.VERSION))
}

func (c *Controller) rev() revision {
	if c.Revision() == Current {
		return currentRev{}
	}
	return legacyRev{}
}

// poll calls ready until it reports true or the budget runs out.
func (c *Controller) poll(budget int, ready func() bool) bool {
	for i := 0; i < budget; i++ {
		if ready() {
			return true
		}
	}
	return false
}

// Init drains stale RX data and programs the reset configuration.
func (c *Controller) Init() error {
	rev := c.rev()
	if !c.poll(c.drainBudget, func() bool { return rev.rxDrained(c.w) }) {
		return ErrRxTimeout
	}

	if c.sck > 0 && c.busClock > 0 {
		c.w.Write32(regs.SCKDIV, sckDiv(c.busClock, c.sck))
	}
	c.w.Write32(regs.SCKMODE, sckMode(c.mode))
	c.w.Write32(regs.FORCE, regs.ResetFORCE)
	c.w.Write32(regs.FCTRL, regs.ResetFCTRL)
	c.w.Write32(regs.FMT, regs.ResetFMT)
	c.w.Write32(regs.FFMT, regs.ResetFFMT)
	c.w.Write32(regs.RXEDGE, regs.ResetRXEDGE)
	return nil
}

// sckDiv computes the divider for f_sck = f_in / (2*(div+1)), rounding
// towards the slower clock.
func sckDiv(in, sck physic.Frequency) uint32 {
	div := (in + 2*sck - 1) / (2 * sck)
	if div > 0 {
		div--
	}
	return min(uint32(div), 0xFFF)
}

// [NuSPI|SCKMODE] bit 0 is polarity, bit 1 is phase.
func sckMode(m spi.Mode) uint32 {
	switch m & 3 {
	case spi.Mode1:
		return regs.SCKModePHA
	case spi.Mode2:
		return regs.SCKModePOL
	case spi.Mode3:
		return regs.SCKModePOL | regs.SCKModePHA
	}
	return regs.ResetSCKMODE
}

// SetDirection switches the transfer direction. FMT is only written when
// the direction actually changes.
func (c *Controller) SetDirection(d Direction) {
	fmtReg := c.w.Read32(regs.FMT)
	if Direction((fmtReg&regs.FMTDir)>>regs.FMTDirShift) == d {
		return
	}
	c.w.Write32(regs.FMT, fmtReg&^regs.FMTDir|uint32(d)<<regs.FMTDirShift)
}

// SetChipSelect holds chip-select asserted across bytes, or returns it to
// automatic per-frame release. Every hold must be paired with a release.
func (c *Controller) SetChipSelect(hold bool) {
	if hold {
		c.w.Write32(regs.CSMODE, regs.CSModeHold)
	} else {
		c.w.Write32(regs.CSMODE, regs.CSModeAuto)
	}
}

// SetPassthrough enables or disables memory-mapped flash access. It must be
// disabled while software commands are issued.
func (c *Controller) SetPassthrough(enabled bool) {
	fctrl := c.w.Read32(regs.FCTRL)
	if enabled {
		c.w.Write32(regs.FCTRL, fctrl|regs.FCTRLEnable)
	} else {
		c.w.Write32(regs.FCTRL, fctrl&^regs.FCTRLEnable)
	}
}

// Passthrough reports whether memory-mapped flash access is enabled.
func (c *Controller) Passthrough() bool {
	return c.w.Read32(regs.FCTRL)&regs.FCTRLEnable != 0
}

// TransmitByte queues one byte for transmission.
func (c *Controller) TransmitByte(b byte) error {
	c.SetDirection(Tx)
	return c.push(c.rev(), b)
}

func (c *Controller) push(rev revision, b byte) error {
	if !c.poll(c.budget, func() bool { return rev.txReady(c.w) }) {
		return ErrTxTimeout
	}
	c.w.Write32(regs.TXDATA, uint32(b))
	return nil
}

// ReceiveByte shifts a dummy zero out and returns the byte shifted in.
func (c *Controller) ReceiveByte() (byte, error) {
	c.SetDirection(Rx)
	rev := c.rev()
	if err := c.push(rev, 0); err != nil {
		return 0, err
	}

	var v uint32
	ok := c.poll(c.budget, func() bool {
		var ready bool
		v, ready = rev.rxPop(c.w)
		return ready
	})
	if !ok {
		return 0, ErrRxTimeout
	}
	return byte(v), nil
}

// WaitIdle waits until queued bytes have left the controller.
func (c *Controller) WaitIdle() error {
	rev := c.rev()
	if !c.poll(c.budget, func() bool { return rev.idle(c.w) }) {
		return ErrBusyTimeout
	}
	return nil
}

// Tx implements conn.Conn. It transmits w and then receives len(r) bytes
// within one chip-select assertion.
func (c *Controller) Tx(w, r []byte) (err error) {
	c.SetChipSelect(true)
	defer c.SetChipSelect(false)

	for _, b := range w {
		if err = c.TransmitByte(b); err != nil {
			return err
		}
	}
	if err = c.WaitIdle(); err != nil {
		return err
	}
	for i := range r {
		if r[i], err = c.ReceiveByte(); err != nil {
			return err
		}
	}
	return nil
}

// Duplex implements conn.Conn.
func (c *Controller) Duplex() conn.Duplex {
	return conn.Half
}

func (c *Controller) String() string {
	return fmt.Sprintf("NuSPI(%s)", c.Revision())
}
