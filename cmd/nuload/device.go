package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/gentam/nuload"
	"github.com/gentam/nuload/nuspi"
	"github.com/gentam/nuload/regs"
	"github.com/gentam/nuload/sim"
	"github.com/golang/glog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// openDevice opens the controller selected by the global flags.
func openDevice() *nuload.Device {
	var d *nuload.Device
	if *simulate {
		opts := sim.Options{BusyPolls: 4}
		if *simLegacy {
			opts.Version = sim.VersionLegacy
		}
		d = nuload.NewDevice(wrap(sim.New(opts)))
	} else {
		var err error
		if d, err = nuload.Open(*baseAddr); err != nil {
			fatalf("%v", err)
		}
		d = nuload.NewDevice(wrap(d.Window()))
	}

	opts, err := controllerOptions(*pollBudget, busClock, sckFreq, *spiMode)
	if err != nil {
		fatalUsage("%v", err)
	}
	d.Loader.ControllerOptions = opts
	return d
}

// controllerOptions translates the bus flags into controller options.
// SCKDIV is only programmed when both clocks are known.
func controllerOptions(budget int, busClk, sck physic.Frequency, mode int) ([]nuspi.Option, error) {
	if mode < 0 || mode > 3 {
		return nil, fmt.Errorf("invalid SPI mode %d", mode)
	}
	opts := []nuspi.Option{nuspi.WithMode(spi.Mode(mode))}
	if budget > 0 {
		opts = append(opts, nuspi.WithBudget(budget))
	}
	switch {
	case busClk > 0 && sck > 0:
		glog.V(1).Infof("SCK %s from %s input clock", sck, busClk)
		opts = append(opts, nuspi.WithClock(busClk, sck))
	case busClk > 0 || sck > 0:
		return nil, errors.New("-sck and -busclk must be given together")
	}
	return opts, nil
}

// wrap logs register accesses at verbosity 2.
func wrap(w regs.Window) regs.Window {
	if !glog.V(2) {
		return w
	}
	return &regs.Trace{W: w, LogFunc: glog.V(2).Infof}
}

// flashAddr narrows an address or size flag to 32 bits.
func flashAddr(a uint) (uint32, error) {
	if a > math.MaxUint32 {
		return 0, fmt.Errorf("address %#x exceeds 32 bits", a)
	}
	return uint32(a), nil
}

func mustFlashAddr(a uint) uint32 {
	v, err := flashAddr(a)
	if err != nil {
		fatalUsage("%v", err)
	}
	return v
}

// probe identifies the chip and checks that it fits the 3-byte address
// space.
func probe(d *nuload.Device) nuload.ID {
	id, err := d.Probe()
	if err != nil {
		fatalf("probe failed: %v", err)
	}
	if !id.Valid() {
		fatalf("no flash chip answered (ID %s)", id)
	}
	return id
}

// limit returns the usable size of the chip.
func limit(id nuload.ID) uint32 {
	size := id.Capacity()
	if size <= 0 || size > nuload.AddrLimit {
		return nuload.AddrLimit
	}
	return uint32(size)
}

func checkBounds(id nuload.ID, addr uint32, n int) {
	if end := int64(addr) + int64(n); end > int64(limit(id)) {
		fatalUsage("range 0x%06X+%d exceeds flash size 0x%06X", addr, n, limit(id))
	}
}
