package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/physic"
)

func fatalf(format string, a ...any) {
	glog.Flush()
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func fatalUsage(format string, a ...any) {
	glog.Flush()
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
	nuload [flags] <command> [arguments]

Commands:
	probe	 print flash ID and status register
	erase	 erase 64KB blocks
	write	 write flash memory
	read	 read flash memory

Flags:
`)
	flag.PrintDefaults()
	os.Exit(2)
}

var (
	baseAddr   = flag.Uint64("base", 0x10014000, "physical address of the NuSPI register block")
	simulate   = flag.Bool("sim", false, "run against a simulated controller and flash")
	simLegacy  = flag.Bool("legacy", false, "simulate a legacy revision controller (with -sim)")
	traceRegs  = flag.Bool("trace", false, "log every register access to stderr (same as -v=2 -logtostderr)")
	pollBudget = flag.Int("budget", 0, "poll iterations before a bus timeout (0: default)")
	spiMode    = flag.Int("mode", 0, "SPI clock mode 0-3")

	busClock physic.Frequency
	sckFreq  physic.Frequency
)

func main() {
	flag.Var(&busClock, "busclk", "controller input clock, e.g. 100MHz (with -sck)")
	flag.Var(&sckFreq, "sck", "maximum SPI clock, e.g. 10MHz (with -busclk)")
	flag.Usage = usage
	flag.Parse()
	if *traceRegs {
		flag.Set("v", "2")
		flag.Set("logtostderr", "true")
	}
	defer glog.Flush()
	if flag.NArg() == 0 {
		usage()
	}

	switch cmd := flag.Arg(0); cmd {
	case "probe":
		probeCommand(flag.Args()[1:])
	case "erase":
		eraseCommand(flag.Args()[1:])
	case "read":
		readCommand(flag.Args()[1:])
	case "write":
		writeCommand(flag.Args()[1:])
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", cmd)
		usage()
	}
}
