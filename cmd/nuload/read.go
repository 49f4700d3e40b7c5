package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/gentam/nuload"
	"github.com/golang/glog"
	"golang.org/x/term"
)

func readCommand(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var (
		addr    uint
		nread   int
		outFile string
	)
	fs.UintVar(&addr, "a", 0, "flash address")
	fs.IntVar(&nread, "n", 256, "number of bytes to read")
	fs.StringVar(&outFile, "o", "", "output file (default: hexdump on terminals, raw otherwise)")
	fs.Parse(args)

	if nread < 0 {
		fatalUsage("invalid length %d", nread)
	}

	d := openDevice()
	defer d.Close()

	a := mustFlashAddr(addr)
	id := probe(d)
	checkBounds(id, a, nread)

	glog.V(1).Infof("Reading %d @ 0x%x...", nread, a)
	data, err := d.Read(a, nread)
	if err != nil {
		fatalf("read flash failed: %v", err)
	}
	fmt.Fprintf(os.Stderr, "read %d bytes at 0x%06X, crc32 %08X\n", len(data), addr, nuload.Checksum(data))

	switch {
	case outFile != "":
		if err := os.WriteFile(outFile, data, 0644); err != nil {
			fatalf("write file failed: %v", err)
		}
	case term.IsTerminal(int(os.Stdout.Fd())):
		fmt.Print(hex.Dump(data))
	default:
		if _, err := os.Stdout.Write(data); err != nil {
			fatalf("write stdout failed: %v", err)
		}
	}
}
