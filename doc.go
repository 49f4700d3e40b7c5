// Package nuload is a flash loader for SPI NOR chips behind a NuSPI
// controller. It probes, erases, programs and reads the chip one request at
// a time and keeps no state between requests.
//
// # References:
//
// NuSPI
//   - [NuSPI]: Nuclei SPI flash controller, derived from the SiFive FE310 QSPI (FE310-G002 Manual, SPI chapter)
//
// SPI Flash
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
//   - [W25Q256FV]: W25Q256FV Winbond Serial Flash Memory
//   - [N25Q32]: N25Q032A Micron Serial NOR Flash Memory datasheet (could not find the official public URL)
package nuload
