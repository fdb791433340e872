// Package host is a pure-Go reference device. It runs the harness kernel
// family (saxpy, vecadd, vecmul, dsum, dmul and copy) on host goroutines and
// is selected with the backend name "host".
//
// Kernel bodies are only checked lexically: each declared entry point runs
// the built-in Go implementation of that name, so the backend reports itself
// as simulated (see device.IsSimulated).
//
// Configuration is a comma separated list of key=value pairs:
//
//	devices=2          number of devices on the single platform (default 1)
//	global_mem=64MiB   device global memory (default: physical memory)
//	compute_units=4    work goroutines per dispatch (default: NumCPU)
//	profiling=false    the device cannot provide event timestamps
package host

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/notargets/KernelHarness/device"
	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
)

// BackendName is the registered name of this backend.
const BackendName = "host"

func init() {
	device.Register(BackendName, func(config string) (device.API, error) {
		return New(config)
	})
}

// Options configure the reference device.
type Options struct {
	Devices      int
	GlobalMem    int64
	ComputeUnits int
	Profiling    bool
}

// DefaultOptions describes one device backed by the machine's memory and CPUs.
func DefaultOptions() Options {
	return Options{
		Devices:      1,
		GlobalMem:    int64(memory.TotalMemory()),
		ComputeUnits: runtime.NumCPU(),
		Profiling:    true,
	}
}

// ParseOptions parses a backend configuration string on top of DefaultOptions.
func ParseOptions(config string) (Options, error) {
	opts := DefaultOptions()
	for _, field := range strings.Split(config, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, found := strings.Cut(field, "=")
		if !found {
			return opts, errors.Errorf("host backend option %q is not key=value", field)
		}
		var err error
		switch strings.TrimSpace(key) {
		case "devices":
			opts.Devices, err = strconv.Atoi(value)
		case "global_mem":
			var n uint64
			n, err = humanize.ParseBytes(value)
			opts.GlobalMem = int64(n)
		case "compute_units":
			opts.ComputeUnits, err = strconv.Atoi(value)
		case "profiling":
			opts.Profiling, err = strconv.ParseBool(value)
		default:
			return opts, errors.Errorf("unknown host backend option %q", key)
		}
		if err != nil {
			return opts, errors.Wrapf(err, "host backend option %q", field)
		}
	}
	if opts.Devices < 0 || opts.ComputeUnits < 1 {
		return opts, errors.Errorf("host backend: invalid options %+v", opts)
	}
	return opts, nil
}

// API is the host backend. ReleaseHook, when set, is called with the kind of
// every object released ("buffer", "kernel", "program", "queue", "context", "event").
type API struct {
	Options     Options
	ReleaseHook func(kind string)
}

// New creates the host backend from a configuration string.
func New(config string) (*API, error) {
	opts, err := ParseOptions(config)
	if err != nil {
		return nil, err
	}
	return &API{Options: opts}, nil
}

// Name implements device.API.
func (a *API) Name() string { return BackendName }

// Simulated implements device.Simulator.
func (a *API) Simulated() bool { return true }

// Platforms implements device.API. There is always exactly one platform.
func (a *API) Platforms() ([]device.Platform, error) {
	return []device.Platform{&Platform{api: a}}, nil
}

func (a *API) released(kind string) {
	if a.ReleaseHook != nil {
		a.ReleaseHook(kind)
	}
}

// Platform is the single host platform.
type Platform struct {
	api *API
}

func (p *Platform) Name() string       { return "Host Reference Platform" }
func (p *Platform) Vendor() string     { return "KernelHarness" }
func (p *Platform) Version() string    { return "Host 1.0" }
func (p *Platform) Profile() string    { return "FULL_PROFILE" }
func (p *Platform) Extensions() string { return "" }

// Devices implements device.Platform. Host devices are CPUs.
func (p *Platform) Devices(class device.Class) ([]device.Device, error) {
	if !class.Matches(device.ClassCPU) {
		return nil, nil
	}
	devices := make([]device.Device, p.api.Options.Devices)
	for i := range devices {
		devices[i] = &Device{api: p.api, index: i}
	}
	return devices, nil
}

// Device is one host reference device.
type Device struct {
	api   *API
	index int
}

func (d *Device) Name() string            { return fmt.Sprintf("Host Reference Device %d", d.index) }
func (d *Device) Vendor() string          { return "KernelHarness" }
func (d *Device) Version() string         { return "Host 1.0" }
func (d *Device) DriverVersion() string   { return runtime.Version() }
func (d *Device) Class() device.Class     { return device.ClassCPU }
func (d *Device) MaxComputeUnits() int    { return d.api.Options.ComputeUnits }
func (d *Device) MaxClockFrequency() int  { return 0 }
func (d *Device) MaxWorkGroupSize() int   { return 1024 }
func (d *Device) MaxWorkItemSizes() []int { return []int{1024, 1024, 1024} }
func (d *Device) GlobalMemSize() int64    { return d.api.Options.GlobalMem }

// NewContext implements device.Device.
func (d *Device) NewContext() (device.Context, error) {
	return &Context{dev: d}, nil
}
