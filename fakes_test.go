package wlink

import (
	"encoding/binary"
	"fmt"
	"time"
)

// fakeTransport hands out a single fakeDevice, enough to exercise
// OpenNth/Attach end to end without any real USB/libusb (spec.md §9 test
// tooling: "fake transport for all tests, no real USB/libusb ever
// touched").
type fakeTransport struct {
	dev *fakeDevice
}

func (f *fakeTransport) Enumerate(mode LinkMode) ([]DeviceHandle, error) {
	if mode != ModeRV {
		return nil, nil
	}
	return []DeviceHandle{{Mode: ModeRV, Bus: 1, Address: 1, Index: 0}}, nil
}

func (f *fakeTransport) OpenNth(mode LinkMode, n int) (OpenDevice, error) {
	if mode != ModeRV || n != 0 {
		return nil, newErr(KindProbeNotFound, "no such fake device")
	}
	return f.dev, nil
}

// fakeDevice is a scripted stand-in for a claimed USB interface. Control
// responses are computed per request by handleControl; data-endpoint I/O is
// captured (writes) or drained from a preloaded queue (reads).
type fakeDevice struct {
	fwMajor, fwMinor byte
	variantByte      byte
	family           FamilyCode
	chipID           uint32

	regs map[byte]uint32

	protectionQueryResp byte

	pendingControlResp []byte
	dataOut            [][]byte
	pendingDataIn       []byte
	programOpcodes     []byte

	closed bool
}

func newFakeDevice(family FamilyCode, chipID uint32) *fakeDevice {
	return &fakeDevice{
		fwMajor: 2, fwMinor: 9, variantByte: 0x02, // Variant E
		family: family, chipID: chipID,
		regs:                make(map[byte]uint32),
		protectionQueryResp: 0x00, // unprotected
	}
}

func (d *fakeDevice) Close() error { d.closed = true; return nil }

func (d *fakeDevice) WriteEndpoint(ep uint8, buf []byte, timeout time.Duration) (int, error) {
	switch ep {
	case EndpointControlOut:
		if len(buf) < 3 {
			return 0, fmt.Errorf("short control frame")
		}
		cmdID := buf[1]
		length := int(buf[2])
		payload := buf[3 : 3+length]
		d.pendingControlResp = d.handleControl(cmdID, payload)
	case EndpointDataOut:
		cp := append([]byte(nil), buf...)
		d.dataOut = append(d.dataOut, cp)
	default:
		return 0, fmt.Errorf("unexpected write endpoint 0x%02X", ep)
	}
	return len(buf), nil
}

func (d *fakeDevice) ReadEndpoint(ep uint8, buf []byte, timeout time.Duration) (int, error) {
	switch ep {
	case EndpointControlIn:
		n := copy(buf, d.pendingControlResp)
		return n, nil
	case EndpointDataIn:
		n := copy(buf, d.pendingDataIn)
		if n < len(buf) {
			return n, fmt.Errorf("data-in queue underrun: wanted %d, had %d", len(buf), n)
		}
		d.pendingDataIn = d.pendingDataIn[n:]
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected read endpoint 0x%02X", ep)
	}
}

// framedSuccess wraps payload in the generic 0x82 CMD LEN success envelope.
func framedSuccess(cmdID byte, payload []byte) []byte {
	frame := []byte{markerResponse, cmdID, byte(len(payload))}
	return append(frame, payload...)
}

// dmstatusAlwaysGood reports every halted/running/resumeack/havereset bit
// set simultaneously, so halt()/resume() always take their immediate,
// no-poll-loop path (spec.md §4.4) — the fake models wire plumbing, not
// real debug-module state transitions.
const dmstatusAlwaysGood uint32 = 0xF0F00

func (d *fakeDevice) handleControl(cmdID byte, payload []byte) []byte {
	switch cmdID {
	case cmdProbeControl:
		return framedSuccess(cmdID, d.handleProbeControl(payload))
	case cmdSetSpeedID, cmdSetWriteRegion, cmdSetReadRegion:
		return framedSuccess(cmdID, nil)
	case cmdProgram:
		d.programOpcodes = append(d.programOpcodes, payload[0])
		return framedSuccess(cmdID, []byte{payload[0]})
	case cmdFlashProtect:
		action := FlashProtectAction(payload[0])
		if action == FlashProtectQueryV1 || action == FlashProtectQueryV2 {
			return framedSuccess(cmdID, []byte{d.protectionQueryResp})
		}
		return framedSuccess(cmdID, nil)
	case cmdDmi:
		return framedSuccess(cmdID, d.handleDmi(payload))
	case cmdChipInfo:
		// Electronic-signature response bypasses the generic envelope
		// (spec.md §4.2); return the raw FF FF ... frame directly.
		return []byte{
			0xFF, 0xFF, 0x00, 0x20,
			0xAE, 0xB4, 0xAB, 0xCD,
			0x16, 0xC6, 0xBC, 0x45,
		}
	default:
		return framedSuccess(cmdID, nil)
	}
}

func (d *fakeDevice) handleProbeControl(payload []byte) []byte {
	switch payload[0] {
	case subProbeInfo:
		// payload[2] carries the variant byte on a 4-byte response; the
		// generic envelope's LEN byte is handled a level up, so this is
		// purely {major, minor, variant, 0} (spec.md §4.3 probe-info layout).
		return []byte{d.fwMajor, d.fwMinor, d.variantByte, 0x00}
	case subAttachChip:
		resp := make([]byte, 5)
		resp[0] = byte(d.family)
		binary.BigEndian.PutUint32(resp[1:5], d.chipID)
		return resp
	default:
		return nil
	}
}

func (d *fakeDevice) handleDmi(payload []byte) []byte {
	op := DmiOp(payload[0])
	addr := payload[1]
	data := binary.BigEndian.Uint32(payload[2:6])

	switch op {
	case DmiOpWrite:
		d.regs[addr] = data
	case DmiOpRead:
		if addr == dmRegDmstatus {
			d.regs[addr] = dmstatusAlwaysGood
		}
		if addr == dmRegAbstractcs {
			d.regs[addr] = 0 // never busy, cmderr none
		}
	}

	resp := make([]byte, 6)
	resp[0] = addr
	binary.BigEndian.PutUint32(resp[1:5], d.regs[addr])
	resp[5] = byte(DmiStatusSuccess)
	return resp
}
