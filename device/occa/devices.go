package occa

import (
	"encoding/json"
	"strings"

	"github.com/notargets/gocca"
	"github.com/pkg/errors"
)

// DefaultModes is the probe order for OCCA devices, preferring parallel
// backends over Serial.
var DefaultModes = []string{"OpenMP", "CUDA", "Serial"}

// DeviceProps returns the device properties JSON for an OCCA mode.
func DeviceProps(mode string) string {
	props := map[string]any{"mode": mode}
	switch strings.ToLower(mode) {
	case "opencl":
		props["platform_id"] = 0
		props["device_id"] = 0
	case "cuda", "hip", "metal", "dpcpp":
		props["device_id"] = 0
	}
	b, _ := json.Marshal(props)
	return string(b)
}

// OpenDevice opens the OCCA device of mode.
func OpenDevice(mode string) (*gocca.OCCADevice, error) {
	dev, err := gocca.NewDevice(DeviceProps(mode))
	if err != nil {
		return nil, errors.Wrapf(err, "creating OCCA %s device", mode)
	}
	return dev, nil
}
