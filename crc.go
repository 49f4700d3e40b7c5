package nuload

import "github.com/snksoft/crc"

var crcTable = crc.NewTable(crc.CRC32)

// Checksum returns the CRC-32 (IEEE) of data, used to compare an image with
// what was read back from the chip.
func Checksum(data []byte) uint32 {
	return uint32(crcTable.CalculateCRC(data))
}
