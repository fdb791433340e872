// Package device defines the host-offload API the harness drives: platforms,
// devices, contexts, queues, programs, kernels, buffers and events.
//
// Each compute runtime (OpenCL, OCCA, the pure-Go host reference) implements
// these interfaces in its own sub-package and registers itself with Register.
// Every Release method must tolerate being called more than once.
package device

import (
	"strings"

	"github.com/pkg/errors"
)

// Class filters devices by kind during enumeration.
type Class int

const (
	ClassAny Class = iota
	ClassCPU
	ClassGPU
	ClassAccelerator
)

var classNames = map[Class]string{
	ClassAny:         "any",
	ClassCPU:         "cpu",
	ClassGPU:         "gpu",
	ClassAccelerator: "accelerator",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseClass converts a class name ("any", "cpu", "gpu", "accelerator") to a Class.
func ParseClass(name string) (Class, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "all" {
		return ClassAny, nil
	}
	for c, n := range classNames {
		if n == name {
			return c, nil
		}
	}
	return ClassAny, errors.Errorf("unknown device class %q (want any, cpu, gpu or accelerator)", name)
}

// Matches reports whether a device of class other passes the filter c.
func (c Class) Matches(other Class) bool {
	return c == ClassAny || c == other
}

// AccessMode is the device-side access of a buffer. It also fixes the only
// legal host transfer direction.
type AccessMode int

const (
	ReadOnly AccessMode = iota
	WriteOnly
)

func (m AccessMode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	default:
		return "unknown"
	}
}

// API is one compute runtime backend.
type API interface {
	// Name is the registered backend name, e.g. "opencl".
	Name() string

	// Platforms enumerates every platform the runtime exposes.
	Platforms() ([]Platform, error)
}

// Simulator is implemented by backends that bind known entry point names to
// built-in implementations instead of compiling the kernel source. Results
// from such a backend say nothing about the kernel body.
type Simulator interface {
	Simulated() bool
}

// IsSimulated reports whether api runs built-ins in place of kernel source.
func IsSimulated(api API) bool {
	s, ok := api.(Simulator)
	return ok && s.Simulated()
}

// Platform is one vendor implementation of the compute API.
type Platform interface {
	Name() string
	Vendor() string
	Version() string
	Profile() string
	Extensions() string

	// Devices enumerates the platform's devices passing the class filter.
	Devices(class Class) ([]Device, error)
}

// Device is one compute unit able to execute compiled kernels.
type Device interface {
	Name() string
	Vendor() string
	Version() string
	DriverVersion() string
	Class() Class
	MaxComputeUnits() int
	MaxClockFrequency() int
	MaxWorkGroupSize() int
	MaxWorkItemSizes() []int
	GlobalMemSize() int64

	// NewContext binds the device to a new logical session.
	NewContext() (Context, error)
}

// Context is the root of every other resource lifetime for one device.
type Context interface {
	// NewQueue creates the command queue. With profiling set, events carry
	// device timestamps; a runtime unable to provide them must fail.
	NewQueue(profiling bool) (Queue, error)

	// NewProgram creates an unbuilt program from source text.
	NewProgram(source string) (Program, error)

	// NewBuffer allocates sizeBytes of device memory.
	NewBuffer(sizeBytes int, mode AccessMode) (Buffer, error)

	Release() error
}

// Program is kernel source compiled for the context's device.
type Program interface {
	// Build compiles the program. On failure the returned error wraps a
	// *BuildFailure carrying the compiler log.
	Build(options string) error

	// NewKernel extracts the named entry point from a built program.
	NewKernel(entry string) (Kernel, error)

	Release() error
}

// Kernel is one entry point with positional argument slots.
type Kernel interface {
	Name() string

	// SetArg binds value (a Buffer, float32 or int32) to slot index.
	SetArg(index int, value any) error

	Release() error
}

// Buffer is one device-resident memory region.
type Buffer interface {
	Size() int
	Mode() AccessMode
	Release() error
}

// Queue is the ordered channel for transfers and dispatches. Transfers are
// blocking; offset is in bytes.
type Queue interface {
	WriteFloat32(buf Buffer, offset int, data []float32) error
	ReadFloat32(buf Buffer, offset int, data []float32) error

	// Enqueue submits one 1-D range of globalWorkSize work items.
	Enqueue(k Kernel, globalWorkSize int) (Event, error)

	Flush() error
	Finish() error
	Release() error
}

// Event is the completion token of one dispatch.
type Event interface {
	// Wait blocks until the dispatch completes or fails.
	Wait() error

	// Timestamps returns the device start and end clocks in nanoseconds.
	Timestamps() (start, end int64, err error)

	Release() error
}

// BuildFailure is the compiler diagnostic attached to a failed Program.Build.
type BuildFailure struct {
	Device string
	Log    string
}

func (b *BuildFailure) Error() string {
	return "program build failed on " + b.Device + ":\n" + b.Log
}
