package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gentam/nuload"
	"github.com/golang/glog"
)

func writeCommand(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	var (
		filename string
		addr     uint
		erase    bool
		verify   bool
	)
	fs.StringVar(&filename, "f", "", "input file")
	fs.UintVar(&addr, "a", 0, "flash address")
	fs.BoolVar(&erase, "e", true, "erase the covered 64KB blocks first")
	fs.BoolVar(&verify, "v", true, "read back and compare")
	fs.Parse(args)

	if filename == "" {
		fatalUsage("input file is required")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		fatalf("failed to read file: %v", err)
	}

	d := openDevice()
	defer d.Close()

	a := mustFlashAddr(addr)
	id := probe(d)
	checkBounds(id, a, len(data))

	if erase {
		start, end := blockSpan(a, len(data))
		glog.V(1).Infof("Erasing 0x%x-0x%x...", start, end)
		if err := d.Erase(start, end); err != nil {
			fatalf("erase flash failed: %v", err)
		}
	}

	glog.V(1).Infof("Writing %d @ 0x%x...", len(data), a)
	if err := d.Write(a, data); err != nil {
		fatalf("write flash failed: %v", err)
	}

	if verify {
		glog.V(1).Infof("Verifying %d @ 0x%x...", len(data), a)
		if err := d.Verify(a, data); err != nil {
			fatalf("%v", err)
		}
	}
	fmt.Fprintf(os.Stderr, "wrote %d bytes at 0x%06X, crc32 %08X\n", len(data), addr, nuload.Checksum(data))
}

// blockSpan returns the 64KB aligned range covering n bytes at addr.
func blockSpan(addr uint32, n int) (start, end uint32) {
	const mask = nuload.BlockSize - 1
	start = addr &^ mask
	end = (addr + uint32(n) + mask) &^ mask
	return start, end
}
