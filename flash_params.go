package nuload

import "fmt"

// ID is a JEDEC ID as returned by Probe: the manufacturer byte in bits
// 0-7, the memory type in bits 8-15 and the capacity code in bits 16-23.
type ID uint32

// IDFromBytes packs an ID in the order the chip sends it.
func IDFromBytes(b [3]byte) ID {
	return ID(b[0]) | ID(b[1])<<8 | ID(b[2])<<16
}

// Bytes returns the ID in the order the chip sends it.
func (id ID) Bytes() [3]byte {
	return [3]byte{byte(id), byte(id >> 8), byte(id >> 16)}
}

func (id ID) Manufacturer() byte { return byte(id) }
func (id ID) MemoryType() byte   { return byte(id >> 8) }
func (id ID) CapacityCode() byte { return byte(id >> 16) }

// Capacity returns the chip size in bytes. For unknown chips it decodes the
// capacity code as a power of two, which most vendors follow.
func (id ID) Capacity() int {
	if p, ok := knownFlash[id.Bytes()]; ok {
		return p.size
	}
	if c := id.CapacityCode(); c >= 0x10 && c <= 0x20 {
		return 1 << c
	}
	return 0
}

// Name returns the chip name for known IDs.
func (id ID) Name() string {
	if p, ok := knownFlash[id.Bytes()]; ok {
		return p.name
	}
	if v, ok := vendors[id.Manufacturer()]; ok {
		return v + " (unknown part)"
	}
	return ""
}

// Valid reports whether a chip answered. A floating or shorted MISO line
// reads as all ones or all zeros.
func (id ID) Valid() bool {
	return id != 0 && id != 0xFFFFFF
}

func (id ID) String() string {
	b := id.Bytes()
	return fmt.Sprintf("%02X%02X%02X", b[0], b[1], b[2])
}

type flashParams struct {
	name string
	size int
}

var (
	flashIDMicronN25Q32    = [3]byte{0x20, 0xBA, 0x16}
	flashIDWinbondW25Q128  = [3]byte{0xEF, 0x70, 0x18}
	flashIDWinbondW25Q128J = [3]byte{0xEF, 0x40, 0x18}
	flashIDWinbondW25Q256  = [3]byte{0xEF, 0x40, 0x19}
	flashIDGigaDeviceGD25Q = [3]byte{0xC8, 0x40, 0x18}
	flashIDMacronixMX25L   = [3]byte{0xC2, 0x20, 0x18}
)

var knownFlash = map[[3]byte]flashParams{
	flashIDMicronN25Q32:    {name: "Micron N25Q 32Mb", size: 4 << 20},
	flashIDWinbondW25Q128:  {name: "Winbond W25Q 128Mb", size: 16 << 20},
	flashIDWinbondW25Q128J: {name: "Winbond W25Q128JV", size: 16 << 20},
	// Only the lower 16MB are reachable with 3-byte addresses.
	flashIDWinbondW25Q256:  {name: "Winbond W25Q256FV", size: 32 << 20},
	flashIDGigaDeviceGD25Q: {name: "GigaDevice GD25Q128", size: 16 << 20},
	flashIDMacronixMX25L:   {name: "Macronix MX25L128", size: 16 << 20},
}

var vendors = map[byte]string{
	0x20: "Micron",
	0xC2: "Macronix",
	0xC8: "GigaDevice",
	0xEF: "Winbond",
}
