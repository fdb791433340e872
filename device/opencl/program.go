package opencl

import (
	"github.com/jgillich/go-opencl/cl"
	"github.com/notargets/KernelHarness/device"
	"github.com/pkg/errors"
)

// Program wraps a cl.Program.
type Program struct {
	p   *cl.Program
	dev *Device
}

// Build implements device.Program. The cl package reports a compiler failure
// as a cl.BuildError holding the raw build log; that log is carried by a
// *device.BuildFailure.
func (p *Program) Build(options string) error {
	if err := p.p.BuildProgram([]*cl.Device{p.dev.d}, options); err != nil {
		return buildError(p.dev.Name(), err)
	}
	return nil
}

func buildError(deviceName string, err error) error {
	var be cl.BuildError
	if !errors.As(err, &be) {
		return device.NewOpError("clBuildProgram", status(err, device.StatusBuildProgramFailure), err)
	}
	failure := &device.BuildFailure{Device: deviceName, Log: string(be)}
	return device.NewOpError("clBuildProgram", device.StatusBuildProgramFailure, failure)
}

// NewKernel implements device.Program.
func (p *Program) NewKernel(entry string) (device.Kernel, error) {
	k, err := p.p.CreateKernel(entry)
	if err != nil {
		return nil, device.NewOpError("clCreateKernel", status(err, device.StatusInvalidKernelName), err)
	}
	return &Kernel{k: k, name: entry}, nil
}

// Release implements device.Program.
func (p *Program) Release() error {
	if p == nil || p.p == nil {
		return nil
	}
	p.p.Release()
	p.p = nil
	return nil
}

// Kernel wraps a cl.Kernel.
type Kernel struct {
	k    *cl.Kernel
	name string
}

func (k *Kernel) Name() string { return k.name }

// SetArg implements device.Kernel. Buffers must come from this backend.
func (k *Kernel) SetArg(index int, value any) error {
	if b, ok := value.(*Buffer); ok {
		if b == nil || b.m == nil {
			return device.NewOpError("clSetKernelArg", device.StatusInvalidMemObject, device.ErrReleased)
		}
		value = b.m
	}
	if _, ok := value.(device.Buffer); ok {
		return device.NewOpError("clSetKernelArg", device.StatusInvalidMemObject,
			errors.Errorf("argument %d of %s is not an OpenCL buffer", index, k.name))
	}
	return opError("clSetKernelArg", k.k.SetArg(index, value))
}

// Release implements device.Kernel.
func (k *Kernel) Release() error {
	if k == nil || k.k == nil {
		return nil
	}
	k.k.Release()
	k.k = nil
	return nil
}
