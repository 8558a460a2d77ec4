// # References:
//
// RISC-V Debug
//   - [RVDEBUG]: RISC-V External Debug Support, v0.13.2 — dmstatus,
//     dmcontrol, abstractcs, hartinfo, command register layout and the
//     abstract-command / program-buffer execution model that dmi.go drives.
//
// Probe wire protocol (reverse-engineered, no public vendor datasheet)
//   - [WCHLINK-PROTO]: community notes on the WCH-Link USB frame format
//     (0x81/0x82 request/response header, command IDs, the non-framed
//     electronic-signature response) encoded by codec.go and commands.go.
//
// USB
//   - [libusb]: github.com/google/gousb wraps libusb-1.0; see
//     internal/usbtransport for the bulk transport the probe is driven over.
package wlink
