// Package occa runs harness kernels through OCCA. Each OCCA mode that can be
// opened is reported as a platform with a single device. It is registered
// under the backend name "occa".
//
// Kernels are OKL rather than OpenCL C: every @kernel receives the global
// work size as one extra trailing int argument, after the harness arguments.
//
//	@kernel void saxpy(const float *input, float *output, const float factor, const int n) {
//		for (int i = 0; i < n; ++i; @tile(64, @outer, @inner)) {
//			output[i] = input[i] * factor;
//		}
//	}
//
// The configuration is a comma separated probe list of OCCA modes, by
// default "OpenMP,CUDA,Serial".
package occa

import (
	"runtime"
	"strings"

	"github.com/notargets/KernelHarness/device"
	"github.com/notargets/gocca"
	"github.com/pbnjay/memory"
	"k8s.io/klog/v2"
)

// BackendName is the registered name of this backend.
const BackendName = "occa"

func init() {
	device.Register(BackendName, func(config string) (device.API, error) {
		return New(config), nil
	})
}

// API probes a list of OCCA modes.
type API struct {
	Modes []string
}

// New creates the backend from a comma separated mode list.
func New(config string) *API {
	var modes []string
	for _, m := range strings.Split(config, ",") {
		if m = strings.TrimSpace(m); m != "" {
			modes = append(modes, m)
		}
	}
	if len(modes) == 0 {
		modes = append(modes, DefaultModes...)
	}
	return &API{Modes: modes}
}

// Name implements device.API.
func (a *API) Name() string { return BackendName }

// Platforms implements device.API. A mode is listed only if a device can be
// opened in it; the probe device is freed right away.
func (a *API) Platforms() ([]device.Platform, error) {
	var platforms []device.Platform
	for _, mode := range a.Modes {
		dev, err := OpenDevice(mode)
		if err != nil {
			klog.V(1).Infof("OCCA mode %s unavailable: %v", mode, err)
			continue
		}
		platforms = append(platforms, &Platform{mode: dev.Mode()})
		dev.Free()
	}
	return platforms, nil
}

// Platform is one OCCA mode.
type Platform struct {
	mode string
}

func (p *Platform) Name() string       { return "OCCA " + p.mode }
func (p *Platform) Vendor() string     { return "OCCA" }
func (p *Platform) Version() string    { return "gocca" }
func (p *Platform) Profile() string    { return "FULL_PROFILE" }
func (p *Platform) Extensions() string { return "" }

// Devices implements device.Platform.
func (p *Platform) Devices(class device.Class) ([]device.Device, error) {
	d := &Device{mode: p.mode}
	if !class.Matches(d.Class()) {
		return nil, nil
	}
	return []device.Device{d}, nil
}

// Device is the device 0 of an OCCA mode.
type Device struct {
	mode string
}

func (d *Device) Name() string            { return d.mode + " device 0" }
func (d *Device) Vendor() string          { return "OCCA" }
func (d *Device) Version() string         { return d.mode }
func (d *Device) DriverVersion() string   { return "gocca" }
func (d *Device) MaxClockFrequency() int  { return 0 }
func (d *Device) MaxWorkGroupSize() int   { return 1024 }
func (d *Device) MaxWorkItemSizes() []int { return []int{1024, 1024, 64} }

func (d *Device) isHost() bool {
	switch strings.ToLower(d.mode) {
	case "serial", "openmp":
		return true
	}
	return false
}

// Class implements device.Device.
func (d *Device) Class() device.Class {
	if d.isHost() {
		return device.ClassCPU
	}
	return device.ClassGPU
}

// MaxComputeUnits implements device.Device. Only host modes are known.
func (d *Device) MaxComputeUnits() int {
	switch strings.ToLower(d.mode) {
	case "serial":
		return 1
	case "openmp":
		return runtime.NumCPU()
	}
	return 0
}

// GlobalMemSize implements device.Device. Zero means unknown.
func (d *Device) GlobalMemSize() int64 {
	if d.isHost() {
		return int64(memory.TotalMemory())
	}
	return 0
}

// NewContext implements device.Device by opening the OCCA device.
func (d *Device) NewContext() (device.Context, error) {
	dev, err := OpenDevice(d.mode)
	if err != nil {
		return nil, device.NewOpError("occa::device", device.StatusDeviceNotAvailable, err)
	}
	return &Context{dev: dev, info: d}, nil
}
