// Package opencl adapts an installed OpenCL runtime to the device
// interfaces. It is registered under the backend name "opencl" and needs cgo
// and an OpenCL ICD loader at link time.
package opencl

import (
	"github.com/jgillich/go-opencl/cl"
	"github.com/notargets/KernelHarness/device"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName is the registered name of this backend.
const BackendName = "opencl"

func init() {
	device.Register(BackendName, func(config string) (device.API, error) {
		if config != "" {
			return nil, errors.Errorf("opencl backend takes no configuration, got %q", config)
		}
		return &API{}, nil
	})
}

// API enumerates the platforms of the installed ICDs.
type API struct{}

// Name implements device.API.
func (API) Name() string { return BackendName }

// Platforms implements device.API.
func (API) Platforms() ([]device.Platform, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, opError("clGetPlatformIDs", err)
	}
	out := make([]device.Platform, len(platforms))
	for i, p := range platforms {
		out[i] = &Platform{p: p}
	}
	return out, nil
}

// Platform wraps a cl.Platform.
type Platform struct {
	p *cl.Platform
}

func (p *Platform) Name() string       { return p.p.Name() }
func (p *Platform) Vendor() string     { return p.p.Vendor() }
func (p *Platform) Version() string    { return p.p.Version() }
func (p *Platform) Profile() string    { return p.p.Profile() }
func (p *Platform) Extensions() string { return p.p.Extensions() }

// Devices implements device.Platform. All devices are queried and filtered
// here, since a typed query fails outright when no device of that type exists.
func (p *Platform) Devices(class device.Class) ([]device.Device, error) {
	devices, err := p.p.GetDevices(cl.DeviceTypeAll)
	if err != nil {
		return nil, opError("clGetDeviceIDs", err)
	}
	var out []device.Device
	for _, d := range devices {
		dev := &Device{d: d}
		if class.Matches(dev.Class()) {
			out = append(out, dev)
		}
	}
	return out, nil
}

// Device wraps a cl.Device.
type Device struct {
	d *cl.Device
}

func (d *Device) Name() string            { return d.d.Name() }
func (d *Device) Vendor() string          { return d.d.Vendor() }
func (d *Device) Version() string         { return d.d.Version() }
func (d *Device) DriverVersion() string   { return d.d.DriverVersion() }
func (d *Device) MaxComputeUnits() int    { return d.d.MaxComputeUnits() }
func (d *Device) MaxClockFrequency() int  { return d.d.MaxClockFrequency() }
func (d *Device) MaxWorkGroupSize() int   { return d.d.MaxWorkGroupSize() }
func (d *Device) MaxWorkItemSizes() []int { return d.d.MaxWorkItemSizes() }
func (d *Device) GlobalMemSize() int64    { return d.d.GlobalMemSize() }

// Class implements device.Device. A device reporting several types is
// classified by the first of GPU, accelerator, CPU.
func (d *Device) Class() device.Class {
	t := d.d.Type()
	switch {
	case t&cl.DeviceTypeGPU != 0:
		return device.ClassGPU
	case t&cl.DeviceTypeAccelerator != 0:
		return device.ClassAccelerator
	case t&cl.DeviceTypeCPU != 0:
		return device.ClassCPU
	}
	return device.ClassAny
}

// NewContext implements device.Device.
func (d *Device) NewContext() (device.Context, error) {
	ctx, err := cl.CreateContext([]*cl.Device{d.d})
	if err != nil {
		return nil, opError("clCreateContext", err)
	}
	return &Context{ctx: ctx, dev: d}, nil
}

// Context wraps a cl.Context bound to one device.
type Context struct {
	ctx *cl.Context
	dev *Device
}

// NewQueue implements device.Context.
func (c *Context) NewQueue(profiling bool) (device.Queue, error) {
	var props cl.CommandQueueProperty
	if profiling {
		props |= cl.CommandQueueProfilingEnable
	}
	q, err := c.ctx.CreateCommandQueue(c.dev.d, props)
	if err != nil {
		return nil, opError("clCreateCommandQueue", err)
	}
	return &Queue{q: q}, nil
}

// NewProgram implements device.Context.
func (c *Context) NewProgram(source string) (device.Program, error) {
	p, err := c.ctx.CreateProgramWithSource([]string{source})
	if err != nil {
		return nil, opError("clCreateProgramWithSource", err)
	}
	return &Program{p: p, dev: c.dev}, nil
}

// NewBuffer implements device.Context.
func (c *Context) NewBuffer(sizeBytes int, mode device.AccessMode) (device.Buffer, error) {
	flags := cl.MemReadOnly
	if mode == device.WriteOnly {
		flags = cl.MemWriteOnly
	}
	m, err := c.ctx.CreateEmptyBuffer(flags, sizeBytes)
	if err != nil {
		return nil, opError("clCreateBuffer", err)
	}
	return &Buffer{m: m, size: sizeBytes, mode: mode}, nil
}

// Release implements device.Context.
func (c *Context) Release() error {
	if c == nil || c.ctx == nil {
		return nil
	}
	klog.V(2).Infof("Releasing OpenCL context on %q", c.dev.Name())
	c.ctx.Release()
	c.ctx = nil
	return nil
}

// Buffer wraps a cl.MemObject.
type Buffer struct {
	m    *cl.MemObject
	size int
	mode device.AccessMode
}

func (b *Buffer) Size() int               { return b.size }
func (b *Buffer) Mode() device.AccessMode { return b.mode }

// Release implements device.Buffer.
func (b *Buffer) Release() error {
	if b == nil || b.m == nil {
		return nil
	}
	b.m.Release()
	b.m = nil
	return nil
}
