package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gentam/nuload"
	"github.com/golang/glog"
)

func eraseCommand(args []string) {
	fs := flag.NewFlagSet("erase", flag.ExitOnError)
	var (
		addr uint
		size uint
		all  bool
	)
	fs.UintVar(&addr, "a", 0, "start address, 64KB aligned")
	fs.UintVar(&size, "n", nuload.BlockSize, "number of bytes, a multiple of 64KB")
	fs.BoolVar(&all, "all", false, "erase the entire chip")
	fs.Parse(args)

	d := openDevice()
	defer d.Close()

	id := probe(d)
	if all {
		addr, size = 0, uint(limit(id))
	}
	start, n := mustFlashAddr(addr), mustFlashAddr(size)
	if start%nuload.BlockSize != 0 || n%nuload.BlockSize != 0 {
		fatalUsage("address and size must be multiples of %#x", nuload.BlockSize)
	}
	checkBounds(id, start, int(n))

	glog.V(1).Infof("Erasing %d @ 0x%x...", n, start)
	if err := d.Erase(start, start+n); err != nil {
		fatalf("erase flash failed: %v", err)
	}
	fmt.Fprintf(os.Stderr, "erased 0x%06X-0x%06X\n", start, start+n)
}
