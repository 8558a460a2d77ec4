// Package vendortransport is the boundary for the Windows-only vendor-DLL
// backend (spec.md §1 "Out of scope (external collaborators)": "the
// Windows-only vendor-driver backend"). The core only needs a Transport it
// can select at runtime alongside internal/usbtransport (spec.md §9); the
// vendor DLL's actual IOCTL surface is outside this repository.
//
// New guards loadLibrary with a process-wide sync/atomic.Bool, mirroring
// the teacher's guarded host.Init() in device.go. On every build in this
// repository loadLibrary returns an error, so no library is ever loaded
// and New always fails.
package vendortransport

import (
	"sync/atomic"

	"github.com/wlink-rv/wlink"
)

var libraryLoaded atomic.Bool

// Transport is the vendor-driver backend selector. Its methods return
// plain (non-LinkError) errors reporting the backend as unavailable, on
// Windows and non-Windows builds alike.
type Transport struct{}

// New calls loadLibrary unless an earlier call succeeded; a failed load
// clears the guard, so the next call tries again (spec.md §5).
func New() (*Transport, error) {
	if libraryLoaded.CompareAndSwap(false, true) {
		if err := loadLibrary(); err != nil {
			libraryLoaded.Store(false)
			return nil, err
		}
	}
	return &Transport{}, nil
}

func (t *Transport) Enumerate(mode wlink.LinkMode) ([]wlink.DeviceHandle, error) {
	return enumerate(mode)
}

func (t *Transport) OpenNth(mode wlink.LinkMode, n int) (wlink.OpenDevice, error) {
	return openNth(mode, n)
}
