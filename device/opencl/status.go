package opencl

import (
	"github.com/jgillich/go-opencl/cl"
	"github.com/notargets/KernelHarness/device"
	"github.com/pkg/errors"
)

var statusCodes = map[error]int{
	cl.ErrDeviceNotFound:             device.StatusDeviceNotFound,
	cl.ErrDeviceNotAvailable:         device.StatusDeviceNotAvailable,
	cl.ErrCompilerNotAvailable:       -3,
	cl.ErrMemObjectAllocationFailure: device.StatusMemObjectAllocationFailure,
	cl.ErrOutOfResources:             device.StatusOutOfResources,
	cl.ErrOutOfHostMemory:            -6,
	cl.ErrProfilingInfoNotAvailable:  device.StatusProfilingInfoNotAvailable,
	cl.ErrBuildProgramFailure:        device.StatusBuildProgramFailure,
	cl.ErrInvalidValue:               device.StatusInvalidValue,
	cl.ErrInvalidDevice:              device.StatusInvalidDevice,
	cl.ErrInvalidContext:             device.StatusInvalidContext,
	cl.ErrInvalidQueueProperties:     device.StatusInvalidQueueProperties,
	cl.ErrInvalidCommandQueue:        device.StatusInvalidCommandQueue,
	cl.ErrInvalidMemObject:           device.StatusInvalidMemObject,
	cl.ErrInvalidBuildOptions:        -43,
	cl.ErrInvalidProgram:             device.StatusInvalidProgram,
	cl.ErrInvalidProgramExecutable:   device.StatusInvalidProgramExecutable,
	cl.ErrInvalidKernelName:          device.StatusInvalidKernelName,
	cl.ErrInvalidKernelDefinition:    -47,
	cl.ErrInvalidKernel:              device.StatusInvalidKernel,
	cl.ErrInvalidArgIndex:            device.StatusInvalidArgIndex,
	cl.ErrInvalidArgValue:            device.StatusInvalidArgValue,
	cl.ErrInvalidArgSize:             -51,
	cl.ErrInvalidKernelArgs:          device.StatusInvalidKernelArgs,
	cl.ErrInvalidWorkDimension:       -53,
	cl.ErrInvalidWorkGroupSize:       -54,
	cl.ErrInvalidWorkItemSize:        -55,
	cl.ErrInvalidGlobalOffset:        -56,
	cl.ErrInvalidEventWaitList:       -57,
	cl.ErrInvalidEvent:               device.StatusInvalidEvent,
	cl.ErrInvalidOperation:           device.StatusInvalidOperation,
	cl.ErrInvalidBufferSize:          device.StatusInvalidBufferSize,
	cl.ErrInvalidGlobalWorkSize:      device.StatusInvalidGlobalWorkSize,
}

// status recovers the numeric OpenCL status behind an error returned by the
// cl package. Errors the cl package does not name report fallback.
func status(err error, fallback int) int {
	if code, ok := statusCodes[errors.Cause(err)]; ok {
		return code
	}
	var other cl.ErrOther
	if errors.As(err, &other) {
		return int(other)
	}
	return fallback
}

// opError wraps err for op with its OpenCL status code.
func opError(op string, err error) error {
	return device.NewOpError(op, status(err, 0), err)
}
