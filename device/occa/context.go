package occa

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unsafe"

	"github.com/notargets/KernelHarness/device"
	"github.com/notargets/gocca"
	"github.com/pkg/errors"
)

const float32Size = 4

// Context owns an open OCCA device.
type Context struct {
	dev  *gocca.OCCADevice
	info *Device
}

func (c *Context) check(op string) error {
	if c.dev == nil {
		return device.NewOpError(op, device.StatusInvalidContext, device.ErrReleased)
	}
	return nil
}

// NewQueue implements device.Context. OCCA has one stream per device here;
// profiling uses the host clock around a device Finish.
func (c *Context) NewQueue(profiling bool) (device.Queue, error) {
	if err := c.check("NewQueue"); err != nil {
		return nil, err
	}
	return &Queue{ctx: c}, nil
}

// NewBuffer implements device.Context.
func (c *Context) NewBuffer(sizeBytes int, mode device.AccessMode) (device.Buffer, error) {
	if err := c.check("NewBuffer"); err != nil {
		return nil, err
	}
	if sizeBytes <= 0 || sizeBytes%float32Size != 0 {
		return nil, device.NewOpError("NewBuffer", device.StatusInvalidBufferSize,
			errors.Errorf("invalid buffer size %d", sizeBytes))
	}
	if max := c.info.GlobalMemSize(); max > 0 && int64(sizeBytes) > max {
		return nil, device.NewOpError("NewBuffer", device.StatusMemObjectAllocationFailure,
			errors.Errorf("%d bytes exceed device memory of %d bytes", sizeBytes, max))
	}
	mem := c.dev.Malloc(int64(sizeBytes), nil, nil)
	if mem == nil {
		return nil, device.NewOpError("NewBuffer", device.StatusMemObjectAllocationFailure,
			errors.Errorf("OCCA malloc of %d bytes failed", sizeBytes))
	}
	return &Buffer{mem: mem, size: sizeBytes, mode: mode}, nil
}

// NewProgram implements device.Context.
func (c *Context) NewProgram(source string) (device.Program, error) {
	if err := c.check("NewProgram"); err != nil {
		return nil, err
	}
	if source == "" {
		return nil, device.NewOpError("NewProgram", device.StatusInvalidValue, errors.New("empty source"))
	}
	return &Program{ctx: c, source: source}, nil
}

// Release implements device.Context.
func (c *Context) Release() error {
	if c == nil || c.dev == nil {
		return nil
	}
	c.dev.Free()
	c.dev = nil
	return nil
}

// Buffer is OCCA device memory.
type Buffer struct {
	mem  *gocca.OCCAMemory
	size int
	mode device.AccessMode
}

func (b *Buffer) Size() int               { return b.size }
func (b *Buffer) Mode() device.AccessMode { return b.mode }

// Release implements device.Buffer.
func (b *Buffer) Release() error {
	if b == nil || b.mem == nil {
		return nil
	}
	b.mem.Free()
	b.mem = nil
	return nil
}

var oklEntry = regexp.MustCompile(`@kernel\s+void\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)

// Program is OKL source. Build compiles every @kernel it declares.
type Program struct {
	ctx     *Context
	source  string
	kernels map[string]*gocca.OCCAKernel
	arity   map[string]int
}

// compilerFlags returns the compiler flags for options. OpenMP does not get
// -O3 by default, so it is added when no flags are given.
func (p *Program) compilerFlags(options string) string {
	if options == "" && p.ctx.dev.Mode() == "OpenMP" {
		return "-O3"
	}
	return options
}

func (p *Program) buildKernel(name, flags string) (*gocca.OCCAKernel, error) {
	if flags == "" {
		return p.ctx.dev.BuildKernelFromString(p.source, name, nil)
	}
	b, _ := json.Marshal(map[string]string{"compiler_flags": flags})
	props := gocca.JsonParse(string(b))
	defer props.Free()
	return p.ctx.dev.BuildKernelFromString(p.source, name, props)
}

// Build implements device.Program.
func (p *Program) Build(options string) error {
	if err := p.ctx.check("Build"); err != nil {
		return err
	}
	matches := oklEntry.FindAllStringSubmatch(p.source, -1)
	if len(matches) == 0 {
		return device.NewOpError("Build", device.StatusBuildProgramFailure,
			&device.BuildFailure{Device: p.ctx.info.Name(), Log: "no @kernel entry points declared"})
	}
	flags := p.compilerFlags(options)
	kernels := make(map[string]*gocca.OCCAKernel, len(matches))
	arity := make(map[string]int, len(matches))
	for _, m := range matches {
		name := m[1]
		params := 0
		if strings.TrimSpace(m[2]) != "" {
			params = strings.Count(m[2], ",") + 1
		}
		if params == 0 {
			for _, k := range kernels {
				k.Free()
			}
			return device.NewOpError("Build", device.StatusBuildProgramFailure, &device.BuildFailure{
				Device: p.ctx.info.Name(),
				Log:    "@kernel " + name + " must take the work size as its last argument",
			})
		}
		arity[name] = params - 1
		kernel, err := p.buildKernel(name, flags)
		if err == nil && kernel == nil {
			err = errors.Errorf("kernel build returned nil for %s", name)
		}
		if err != nil {
			for _, k := range kernels {
				k.Free()
			}
			return device.NewOpError("Build", device.StatusBuildProgramFailure,
				&device.BuildFailure{Device: p.ctx.info.Name(), Log: err.Error()})
		}
		kernels[name] = kernel
	}
	p.kernels, p.arity = kernels, arity
	return nil
}

// NewKernel implements device.Program. The kernel shares the compiled OCCA
// kernel; releasing it does not free the program's copy.
func (p *Program) NewKernel(entry string) (device.Kernel, error) {
	if p.kernels == nil {
		return nil, device.NewOpError("NewKernel", device.StatusInvalidProgramExecutable,
			errors.New("program is not built"))
	}
	k, ok := p.kernels[entry]
	if !ok {
		return nil, device.NewOpError("NewKernel", device.StatusInvalidKernelName,
			errors.Errorf("no @kernel named %q", entry))
	}
	return &Kernel{k: k, name: entry, args: make([]any, p.arity[entry])}, nil
}

// Release implements device.Program.
func (p *Program) Release() error {
	if p == nil {
		return nil
	}
	for _, k := range p.kernels {
		k.Free()
	}
	p.kernels, p.arity = nil, nil
	return nil
}

// Kernel is one @kernel of a built program with its bound arguments.
type Kernel struct {
	k        *gocca.OCCAKernel
	name     string
	args     []any
	released bool
}

func (k *Kernel) Name() string { return k.name }

// SetArg implements device.Kernel.
func (k *Kernel) SetArg(index int, value any) error {
	if k.released {
		return device.NewOpError("SetArg", device.StatusInvalidKernel, device.ErrReleased)
	}
	if index < 0 || index >= len(k.args) {
		return device.NewOpError("SetArg", device.StatusInvalidArgIndex,
			errors.Errorf("kernel %s has %d arguments before the work size, got index %d", k.name, len(k.args), index))
	}
	switch v := value.(type) {
	case *Buffer:
		if v == nil || v.mem == nil {
			return device.NewOpError("SetArg", device.StatusInvalidMemObject, device.ErrReleased)
		}
	case float32, int32:
	default:
		return device.NewOpError("SetArg", device.StatusInvalidArgValue,
			errors.Errorf("argument %d of %s: unsupported type %T", index, k.name, value))
	}
	k.args[index] = value
	return nil
}

// Release implements device.Kernel.
func (k *Kernel) Release() error {
	if k == nil {
		return nil
	}
	k.released = true
	return nil
}

// Queue serializes work on the OCCA device.
type Queue struct {
	ctx     *Context
	pending *Event
}

func (q *Queue) drain() error {
	if q.pending == nil {
		return nil
	}
	err := q.pending.Wait()
	q.pending = nil
	return err
}

func (q *Queue) buffer(op string, buf device.Buffer, offset, n int) (*Buffer, error) {
	if err := q.ctx.check(op); err != nil {
		return nil, err
	}
	b, ok := buf.(*Buffer)
	if !ok || b == nil || b.mem == nil {
		return nil, device.NewOpError(op, device.StatusInvalidMemObject, errors.New("not a live OCCA buffer"))
	}
	if offset < 0 || offset+n*float32Size > b.size {
		return nil, device.NewOpError(op, device.StatusInvalidValue,
			errors.Errorf("transfer of %d elements at byte offset %d exceeds buffer of %d bytes", n, offset, b.size))
	}
	return b, q.drain()
}

// WriteFloat32 implements device.Queue.
func (q *Queue) WriteFloat32(buf device.Buffer, offset int, data []float32) error {
	b, err := q.buffer("WriteFloat32", buf, offset, len(data))
	if err != nil || len(data) == 0 {
		return err
	}
	b.mem.CopyFromWithOffset(unsafe.Pointer(&data[0]), int64(len(data)*float32Size), int64(offset))
	return nil
}

// ReadFloat32 implements device.Queue.
func (q *Queue) ReadFloat32(buf device.Buffer, offset int, data []float32) error {
	b, err := q.buffer("ReadFloat32", buf, offset, len(data))
	if err != nil || len(data) == 0 {
		return err
	}
	b.mem.CopyToWithOffset(unsafe.Pointer(&data[0]), int64(len(data)*float32Size), int64(offset))
	return nil
}

// Enqueue implements device.Queue. The bound arguments are passed in index
// order followed by the work size as an int.
func (q *Queue) Enqueue(k device.Kernel, globalWorkSize int) (device.Event, error) {
	if err := q.ctx.check("Enqueue"); err != nil {
		return nil, err
	}
	kernel, ok := k.(*Kernel)
	if !ok || kernel == nil || kernel.released {
		return nil, device.NewOpError("Enqueue", device.StatusInvalidKernel, errors.New("not a live OCCA kernel"))
	}
	if globalWorkSize <= 0 {
		return nil, device.NewOpError("Enqueue", device.StatusInvalidGlobalWorkSize,
			errors.Errorf("global work size %d", globalWorkSize))
	}
	args := make([]any, 0, len(kernel.args)+1)
	for i, a := range kernel.args {
		switch v := a.(type) {
		case nil:
			return nil, device.NewOpError("Enqueue", device.StatusInvalidKernelArgs,
				errors.Errorf("argument %d of %s is not set", i, kernel.name))
		case *Buffer:
			if v.mem == nil {
				return nil, device.NewOpError("Enqueue", device.StatusInvalidMemObject,
					errors.Errorf("argument %d of %s was released", i, kernel.name))
			}
			if v.size < globalWorkSize*float32Size {
				return nil, device.NewOpError("Enqueue", device.StatusInvalidGlobalWorkSize,
					errors.Errorf("global work size %d exceeds argument %d of %d bytes", globalWorkSize, i, v.size))
			}
			args = append(args, v.mem)
		default:
			args = append(args, v)
		}
	}
	args = append(args, int32(globalWorkSize))
	if err := q.drain(); err != nil {
		return nil, err
	}

	ev := &Event{dev: q.ctx.dev, start: time.Now()}
	if err := kernel.k.RunWithArgs(args...); err != nil {
		return nil, device.NewOpError("Enqueue", device.StatusOutOfResources,
			errors.Wrapf(err, "running kernel %s", kernel.name))
	}
	q.pending = ev
	return ev, nil
}

// Flush implements device.Queue. Launches are submitted immediately.
func (q *Queue) Flush() error { return nil }

// Finish implements device.Queue.
func (q *Queue) Finish() error {
	if err := q.drain(); err != nil {
		return err
	}
	if q.ctx.dev != nil {
		q.ctx.dev.Finish()
	}
	return nil
}

// Release implements device.Queue.
func (q *Queue) Release() error {
	if q == nil {
		return nil
	}
	q.pending = nil
	return nil
}

// Event completes when the device finishes the launch. Timestamps are host
// clock readings around the launch.
type Event struct {
	dev        *gocca.OCCADevice
	start, end time.Time
}

// Wait implements device.Event.
func (e *Event) Wait() error {
	if e.end.IsZero() {
		e.dev.Finish()
		e.end = time.Now()
	}
	return nil
}

// Timestamps implements device.Event.
func (e *Event) Timestamps() (start, end int64, err error) {
	if e.end.IsZero() {
		return 0, 0, device.NewOpError("Timestamps", device.StatusProfilingInfoNotAvailable,
			errors.New("event has not completed"))
	}
	return e.start.UnixNano(), e.end.UnixNano(), nil
}

// Release implements device.Event.
func (e *Event) Release() error { return nil }
