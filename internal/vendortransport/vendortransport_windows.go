//go:build windows

package vendortransport

import (
	"github.com/wlink-rv/wlink"
)

// loadLibrary would resolve and pin the vendor DLL's exported IOCTL
// entry points; the concrete DLL name and calling convention are outside
// this repository's scope (spec.md §1).
func loadLibrary() error {
	return newUnavailable("vendor DLL loading not implemented in this build")
}

func enumerate(mode wlink.LinkMode) ([]wlink.DeviceHandle, error) {
	return nil, newUnavailable("vendor-driver enumerate")
}

func openNth(mode wlink.LinkMode, n int) (wlink.OpenDevice, error) {
	return nil, newUnavailable("vendor-driver open")
}

func newUnavailable(op string) error {
	return vendorError{op: op}
}

type vendorError struct{ op string }

func (e vendorError) Error() string {
	return "vendortransport: " + e.op + ": vendor-driver backend not available on this build"
}
