//go:build !windows

package vendortransport

import (
	"errors"

	"github.com/wlink-rv/wlink"
)

func loadLibrary() error {
	return errors.New("vendortransport: vendor-driver backend is only available on windows")
}

func enumerate(mode wlink.LinkMode) ([]wlink.DeviceHandle, error) {
	return nil, errors.New("vendortransport: vendor-driver backend is only available on windows")
}

func openNth(mode wlink.LinkMode, n int) (wlink.OpenDevice, error) {
	return nil, errors.New("vendortransport: vendor-driver backend is only available on windows")
}
