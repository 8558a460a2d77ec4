// Package usbtransport implements wlink.Transport/wlink.OpenDevice over
// libusb via github.com/google/gousb, the cross-platform backend used on
// Linux/macOS and non-vendor-driver Windows setups.
package usbtransport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/wlink-rv/wlink"
)

// Transport opens and enumerates WCH-Link-class probes via libusb. The
// zero value is not usable; construct with New.
type Transport struct {
	ctx *gousb.Context
}

// New creates a libusb context. Call Close when done enumerating/opening.
func New() *Transport {
	return &Transport{ctx: gousb.NewContext()}
}

// Close releases the libusb context.
func (t *Transport) Close() error { return t.ctx.Close() }

func productFor(mode wlink.LinkMode) gousb.ID {
	if mode == wlink.ModeDAP {
		return gousb.ID(wlink.ProductDAP)
	}
	return gousb.ID(wlink.ProductRV)
}

// Enumerate lists every attached probe matching mode, ordered by (bus,
// address) the way gousb.OpenDevices reports them.
func (t *Transport) Enumerate(mode wlink.LinkMode) ([]wlink.DeviceHandle, error) {
	want := productFor(mode)
	devices, err := t.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(wlink.VendorWCH) && desc.Product == want
	})
	for _, d := range devices {
		d.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("enumerate %s-mode devices: %w", mode, err)
	}

	out := make([]wlink.DeviceHandle, len(devices))
	for i, d := range devices {
		out[i] = wlink.DeviceHandle{Mode: mode, Bus: d.Desc.Bus, Address: d.Desc.Address, Index: i}
	}
	return out, nil
}

// OpenNth opens the nth (0-based) enumerated device for mode and claims
// interface 0.
func (t *Transport) OpenNth(mode wlink.LinkMode, n int) (wlink.OpenDevice, error) {
	want := productFor(mode)
	devices, err := t.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(wlink.VendorWCH) && desc.Product == want
	})
	if err != nil {
		for _, d := range devices {
			d.Close()
		}
		return nil, fmt.Errorf("enumerate %s-mode devices: %w", mode, err)
	}
	if n < 0 || n >= len(devices) {
		for _, d := range devices {
			d.Close()
		}
		return nil, fmt.Errorf("no %s-mode device at index %d (found %d)", mode, n, len(devices))
	}

	chosen := devices[n]
	for i, d := range devices {
		if i != n {
			d.Close()
		}
	}

	cfg, err := chosen.Config(1)
	if err != nil {
		chosen.Close()
		return nil, fmt.Errorf("set usb config: %w", err)
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		chosen.Close()
		return nil, fmt.Errorf("claim interface 0: %w", err)
	}

	return &openDevice{dev: chosen, cfg: cfg, intf: intf, mode: mode}, nil
}

// openDevice is a claimed interface with its bulk endpoints resolved lazily
// per direction, since RV mode uses two endpoint pairs (control, data).
type openDevice struct {
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	mode wlink.LinkMode

	outEPs map[uint8]*gousb.OutEndpoint
	inEPs  map[uint8]*gousb.InEndpoint
}

func (d *openDevice) outEndpoint(ep uint8) (*gousb.OutEndpoint, error) {
	if d.outEPs == nil {
		d.outEPs = make(map[uint8]*gousb.OutEndpoint)
	}
	if e, ok := d.outEPs[ep]; ok {
		return e, nil
	}
	e, err := d.intf.OutEndpoint(int(ep))
	if err != nil {
		return nil, fmt.Errorf("open out endpoint 0x%02x: %w", ep, err)
	}
	d.outEPs[ep] = e
	return e, nil
}

func (d *openDevice) inEndpoint(ep uint8) (*gousb.InEndpoint, error) {
	if d.inEPs == nil {
		d.inEPs = make(map[uint8]*gousb.InEndpoint)
	}
	if e, ok := d.inEPs[ep]; ok {
		return e, nil
	}
	e, err := d.intf.InEndpoint(int(ep))
	if err != nil {
		return nil, fmt.Errorf("open in endpoint 0x%02x: %w", ep, err)
	}
	d.inEPs[ep] = e
	return e, nil
}

func (d *openDevice) WriteEndpoint(ep uint8, buf []byte, timeout time.Duration) (int, error) {
	e, err := d.outEndpoint(ep)
	if err != nil {
		return 0, err
	}
	opCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.WriteContext(opCtx, buf)
}

func (d *openDevice) ReadEndpoint(ep uint8, buf []byte, timeout time.Duration) (int, error) {
	e, err := d.inEndpoint(ep)
	if err != nil {
		return 0, err
	}
	opCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.ReadContext(opCtx, buf)
}

func (d *openDevice) Close() error {
	d.intf.Close()
	d.cfg.Close()
	return d.dev.Close()
}
