package main

import (
	"flag"
	"fmt"

	"github.com/gentam/nuload"
	"github.com/gentam/nuload/nuspi"
)

func probeCommand(args []string) {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	idOnly := fs.Bool("id", false, "just print flash ID")
	fs.Parse(args)

	d := openDevice()
	defer d.Close()

	id := probe(d)
	if *idOnly {
		fmt.Printf("%s\t%s\n", id, id.Name())
		return
	}

	c := nuspi.New(d.Window(), d.Loader.ControllerOptions...)
	c.SetPassthrough(false)
	sr, err := nuload.NewFlash(c).ReadStatusRegister()
	c.SetPassthrough(true)
	if err != nil {
		fatalf("read flash status register failed: %v", err)
	}

	fmt.Printf("Controller:      %s\n", c)
	fmt.Printf("JEDEC ID:        %s\n", id)
	fmt.Printf("Manufacturer:    %#02x\n", id.Manufacturer())
	fmt.Printf("Memory type:     %#02x\n", id.MemoryType())
	fmt.Printf("Capacity:        %d bytes\n", id.Capacity())
	fmt.Printf("Name:            %s\n", id.Name())
	fmt.Printf("Status:          %s\n", sr)
}
