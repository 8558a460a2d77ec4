package wlink

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ProbeVariant is the recognized probe hardware flavour (spec.md §3).
type ProbeVariant int

const (
	VariantLegacy ProbeVariant = iota // CH549-based, no mode-switch/power/SDI-print
	VariantE
	VariantS
	VariantW
)

func (v ProbeVariant) String() string {
	switch v {
	case VariantLegacy:
		return "Legacy"
	case VariantE:
		return "E"
	case VariantS:
		return "S"
	case VariantW:
		return "W"
	default:
		return "unknown"
	}
}

// supportsModeSwitch reports whether this variant can switch RV<->DAP mode
// (spec.md §4.3: "Legacy CH549-based probe does not support either").
func (v ProbeVariant) supportsModeSwitch() bool { return v != VariantLegacy }

// supportsSpecialErase reports whether this variant offers the attach-less
// power-off/reset-pin erase methods (spec.md §4.5: "only on the E/W probe
// variants").
func (v ProbeVariant) supportsSpecialErase() bool { return v == VariantE || v == VariantW }

// Probe is one opened, interface-claimed USB handle (spec.md §3). Its
// lifetime runs from OpenNth until Close; the interface is claimed
// for the whole lifetime.
type Probe struct {
	transport Transport
	dev       OpenDevice
	mode      LinkMode

	variant       ProbeVariant
	fwMajor       byte
	fwMinor       byte

	cfg config

	// hasSession guards spec.md §3's invariant: "A probe may host at most
	// one active session."
	hasSession bool
}

// ListProbes enumerates every probe visible under the given transport,
// across both RV and DAP mode (spec.md §4.3 Enumeration / consumer API
// list_probes).
func ListProbes(t Transport) ([]DeviceHandle, error) {
	var all []DeviceHandle
	rv, err := t.Enumerate(ModeRV)
	if err != nil {
		return nil, wrapErr(KindUSB, "enumerate RV-mode devices", err)
	}
	all = append(all, rv...)

	dap, err := t.Enumerate(ModeDAP)
	if err != nil {
		return nil, wrapErr(KindUSB, "enumerate DAP-mode devices", err)
	}
	all = append(all, dap...)
	return all, nil
}

// OpenNth opens the nth RV-mode probe (spec.md consumer API open_nth).
// If the RV-mode open fails while no RV-mode probe is enumerated and at
// least one DAP-mode probe is, it returns ProbeModeNotSupported; any other
// open failure is ProbeNotFound.
func OpenNth(t Transport, n int, opts ...Option) (*Probe, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	dev, err := t.OpenNth(ModeRV, n)
	if err != nil {
		rvDevices, enumErr := t.Enumerate(ModeRV)
		if enumErr == nil && len(rvDevices) == 0 {
			if dapDevices, derr := t.Enumerate(ModeDAP); derr == nil && len(dapDevices) > 0 {
				return nil, newErr(KindProbeModeNotSupported, "probe enumerated only in DAP mode")
			}
		}
		return nil, wrapErr(KindProbeNotFound, fmt.Sprintf("open RV-mode device #%d", n), err)
	}

	p := &Probe{transport: t, dev: dev, mode: ModeRV, cfg: cfg}
	if err := p.queryProbeInfo(); err != nil {
		dev.Close()
		return nil, err
	}
	cfg.logger.WithFields(logrus.Fields{
		"variant": p.variant, "fw": fmt.Sprintf("%d.%d", p.fwMajor, p.fwMinor),
	}).Debug("probe opened")
	return p, nil
}

// Close releases the claimed USB interface (spec.md §5 "Resource
// discipline").
func (p *Probe) Close() error { return p.dev.Close() }

// transact sends cmd on the control endpoint and decodes exactly one
// response before returning, per spec.md §3's invariant: "Every successful
// request on the control endpoint produces exactly one response on the
// control endpoint before the next request is issued."
func (p *Probe) transact(cmd Command) ([]byte, error) {
	frame, err := EncodeRequest(cmd)
	if err != nil {
		return nil, err
	}

	n, err := p.dev.WriteEndpoint(EndpointControlOut, frame, p.cfg.usbTimeout)
	if err != nil {
		return nil, wrapErr(KindUSB, "write control endpoint", err)
	}
	if n != len(frame) {
		return nil, newErr(KindIO, fmt.Sprintf("short write: wrote %d of %d bytes", n, len(frame)))
	}

	// Control reads always fit a single 64-byte packet (spec.md §4.1).
	buf := make([]byte, 64)
	n, err = p.dev.ReadEndpoint(EndpointControlIn, buf, p.cfg.usbTimeout)
	if err != nil {
		return nil, wrapErr(KindUSB, "read control endpoint", err)
	}

	p.cfg.logger.WithFields(logrus.Fields{"cmd": fmt.Sprintf("0x%02X", cmd.CommandID())}).Trace("control transaction")
	return DecodeResponse(buf[:n])
}

// transactRaw behaves like transact but returns the raw response frame
// undecoded, for commands whose response is not framed the usual way
// (spec.md §4.2: "select responses override the default decoder" — notably
// the electronic-signature response, which begins FF FF rather than 0x82).
func (p *Probe) transactRaw(cmd Command) ([]byte, error) {
	frame, err := EncodeRequest(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := p.dev.WriteEndpoint(EndpointControlOut, frame, p.cfg.usbTimeout); err != nil {
		return nil, wrapErr(KindUSB, "write control endpoint", err)
	}
	buf := make([]byte, 64)
	n, err := p.dev.ReadEndpoint(EndpointControlIn, buf, p.cfg.usbTimeout)
	if err != nil {
		return nil, wrapErr(KindUSB, "read control endpoint", err)
	}
	return buf[:n], nil
}

// --- Mode switch (spec.md §4.3) ---

// SwitchFromRVToDAP sends the RV->DAP mode-switch escape to the nth
// RV-mode probe.
func SwitchFromRVToDAP(t Transport, n int) error {
	dev, err := t.OpenNth(ModeRV, n)
	if err != nil {
		return wrapErr(KindProbeNotFound, "open RV-mode device for mode switch", err)
	}
	defer dev.Close()

	p := &Probe{transport: t, dev: dev, mode: ModeRV, cfg: defaultConfig()}
	if err := p.queryProbeInfo(); err == nil && !p.variant.supportsModeSwitch() {
		return newErr(KindUnsupportedChip, "legacy probe does not support mode switch")
	}
	_, err = p.transact(ModeSwitchCmd())
	return err
}

// SwitchFromDAPToRV writes the DAP->RV escape sequence directly to the DAP
// write endpoint (spec.md §4.3: "write the 4-byte sequence 81 FF 01 52 to
// the DAP write endpoint (0x02)").
func SwitchFromDAPToRV(t Transport, n int) error {
	dev, err := t.OpenNth(ModeDAP, n)
	if err != nil {
		return wrapErr(KindProbeNotFound, "open DAP-mode device for mode switch", err)
	}
	defer dev.Close()

	_, err = dev.WriteEndpoint(EndpointDataOut, dapToRVSequence, defaultUSBTimeout)
	if err != nil {
		return wrapErr(KindUSB, "write DAP->RV escape sequence", err)
	}
	return nil
}

// --- Probe info (spec.md §4.3) ---

func (p *Probe) queryProbeInfo() error {
	resp, err := p.transact(ProbeInfoCmd{})
	if err != nil {
		return err
	}

	switch len(resp) {
	case 3:
		p.fwMajor, p.fwMinor = resp[0], resp[1]
		p.variant = VariantLegacy
	case 4:
		p.fwMajor, p.fwMinor = resp[0], resp[1]
		variant, err := decodeVariantByte(resp[2])
		if err != nil {
			return err
		}
		p.variant = variant
	default:
		return newErr(KindInvalidPayloadLength, fmt.Sprintf("probe-info response length %d unsupported", len(resp)))
	}
	return nil
}

func decodeVariantByte(b byte) (ProbeVariant, error) {
	switch b {
	case 0x01:
		return VariantLegacy, nil
	case 0x02, 0x12: // 0x12 is an alias for the E variant
		return VariantE, nil
	case 0x03:
		return VariantS, nil
	case 0x05:
		return VariantW, nil
	default:
		return 0, newErr(KindUnknownLinkVariant, fmt.Sprintf("unrecognized variant byte 0x%02X", b))
	}
}

// firmwareAtLeast29 reports whether the probe firmware is >= 2.9, the
// version gate spec.md §4.6/§8 scenario 2 key protection-command and
// chip-info-command form selection on.
func (p *Probe) firmwareAtLeast29() bool {
	if p.fwMajor != 2 {
		return p.fwMajor > 2
	}
	return p.fwMinor >= 9
}

// dataWrite streams buf on the data-OUT endpoint in packetSize-sized
// packets, padding the final packet with 0xFF to packetSize (spec.md §4.1
// / testable property "Data-endpoint padding").
func (p *Probe) dataWrite(buf []byte, packetSize int) error {
	for off := 0; off < len(buf); off += packetSize {
		end := off + packetSize
		var packet []byte
		if end <= len(buf) {
			packet = buf[off:end]
		} else {
			packet = make([]byte, packetSize)
			n := copy(packet, buf[off:])
			for i := n; i < packetSize; i++ {
				packet[i] = 0xFF
			}
		}
		n, err := p.dev.WriteEndpoint(EndpointDataOut, packet, p.cfg.usbTimeout)
		if err != nil {
			return wrapErr(KindUSB, "write data endpoint", err)
		}
		if n != len(packet) {
			return newErr(KindIO, fmt.Sprintf("short data write: wrote %d of %d bytes", n, len(packet)))
		}
	}
	return nil
}

// dataRead concatenates 64-byte packets from the data-IN endpoint until
// total bytes have been read (spec.md §4.1: "data reads may require
// concatenation of multiple 64-byte packets up to a requested total
// length").
func (p *Probe) dataRead(total int) ([]byte, error) {
	const packet = 64
	out := make([]byte, 0, total)
	buf := make([]byte, packet)
	for len(out) < total {
		want := min(packet, total-len(out))
		n, err := p.dev.ReadEndpoint(EndpointDataIn, buf[:want], p.cfg.usbTimeout)
		if err != nil {
			return nil, wrapErr(KindUSB, "read data endpoint", err)
		}
		if n != want {
			return nil, newErr(KindIO, fmt.Sprintf("short data read: got %d of %d bytes", n, want))
		}
		out = append(out, buf[:n]...)
	}
	return out, nil
}

// dataReadExact reads exactly n bytes on the data-IN endpoint, used for
// the 4-byte per-chunk write-flash acknowledgement (spec.md §4.5 step 7).
func (p *Probe) dataReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := p.dev.ReadEndpoint(EndpointDataIn, buf, p.cfg.usbTimeout)
	if err != nil {
		return nil, wrapErr(KindUSB, "read data endpoint", err)
	}
	if got != n {
		return nil, newErr(KindIO, fmt.Sprintf("short ack read: got %d of %d bytes", got, n))
	}
	return buf, nil
}
