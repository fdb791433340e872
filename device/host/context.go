package host

import (
	"sync"
	"time"

	"github.com/notargets/KernelHarness/device"
	"github.com/pkg/errors"
)

const float32Size = 4

// Context implements device.Context for a host device.
type Context struct {
	dev      *Device
	released bool
}

func (c *Context) check(op string) error {
	if c.released {
		return device.NewOpError(op, device.StatusInvalidContext, device.ErrReleased)
	}
	return nil
}

// NewQueue implements device.Context.
func (c *Context) NewQueue(profiling bool) (device.Queue, error) {
	if err := c.check("NewQueue"); err != nil {
		return nil, err
	}
	if profiling && !c.dev.api.Options.Profiling {
		return nil, device.NewOpError("NewQueue", device.StatusInvalidQueueProperties,
			errors.New("profiling not supported by device"))
	}
	return &Queue{ctx: c, profiling: profiling}, nil
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
	if int64(sizeBytes) > c.dev.GlobalMemSize() {
		return nil, device.NewOpError("NewBuffer", device.StatusMemObjectAllocationFailure,
			errors.Errorf("%d bytes exceed device global memory of %d bytes", sizeBytes, c.dev.GlobalMemSize()))
	}
	return &Buffer{ctx: c, mode: mode, data: make([]float32, sizeBytes/float32Size)}, nil
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
	if c == nil || c.released {
		return nil
	}
	c.released = true
	c.dev.api.released("context")
	return nil
}

// Buffer is host memory standing in for device memory.
type Buffer struct {
	ctx  *Context
	mode device.AccessMode
	data []float32
}

func (b *Buffer) Size() int               { return len(b.data) * float32Size }
func (b *Buffer) Mode() device.AccessMode { return b.mode }

// Release implements device.Buffer.
func (b *Buffer) Release() error {
	if b == nil || b.data == nil {
		return nil
	}
	b.data = nil
	b.ctx.dev.api.released("buffer")
	return nil
}

// Queue is an in-order host queue. Transfers wait for the pending dispatch.
type Queue struct {
	ctx       *Context
	profiling bool
	pending   *Event
	released  bool
}

func (q *Queue) drain() error {
	if q.pending == nil {
		return nil
	}
	err := q.pending.Wait()
	q.pending = nil
	return err
}

func (q *Queue) buffer(op string, buf device.Buffer, offset int, n int) (*Buffer, error) {
	if q.released {
		return nil, device.NewOpError(op, device.StatusInvalidCommandQueue, device.ErrReleased)
	}
	b, ok := buf.(*Buffer)
	if !ok || b == nil || b.data == nil {
		return nil, device.NewOpError(op, device.StatusInvalidMemObject, errors.New("not a live host buffer"))
	}
	if offset < 0 || offset%float32Size != 0 || offset+n*float32Size > b.Size() {
		return nil, device.NewOpError(op, device.StatusInvalidValue,
			errors.Errorf("transfer of %d elements at byte offset %d exceeds buffer of %d bytes", n, offset, b.Size()))
	}
	if err := q.drain(); err != nil {
		return nil, device.NewOpError(op, device.StatusOutOfResources, err)
	}
	return b, nil
}

// WriteFloat32 implements device.Queue.
func (q *Queue) WriteFloat32(buf device.Buffer, offset int, data []float32) error {
	b, err := q.buffer("WriteFloat32", buf, offset, len(data))
	if err != nil {
		return err
	}
	copy(b.data[offset/float32Size:], data)
	return nil
}

// ReadFloat32 implements device.Queue.
func (q *Queue) ReadFloat32(buf device.Buffer, offset int, data []float32) error {
	b, err := q.buffer("ReadFloat32", buf, offset, len(data))
	if err != nil {
		return err
	}
	copy(data, b.data[offset/float32Size:])
	return nil
}

// Enqueue implements device.Queue.
func (q *Queue) Enqueue(k device.Kernel, globalWorkSize int) (device.Event, error) {
	if q.released {
		return nil, device.NewOpError("Enqueue", device.StatusInvalidCommandQueue, device.ErrReleased)
	}
	kernel, ok := k.(*Kernel)
	if !ok || kernel == nil || kernel.released {
		return nil, device.NewOpError("Enqueue", device.StatusInvalidKernel, errors.New("not a live host kernel"))
	}
	if globalWorkSize <= 0 {
		return nil, device.NewOpError("Enqueue", device.StatusInvalidGlobalWorkSize,
			errors.Errorf("global work size %d", globalWorkSize))
	}
	args, err := kernel.resolve(globalWorkSize)
	if err != nil {
		return nil, err
	}
	if err := q.drain(); err != nil {
		return nil, device.NewOpError("Enqueue", device.StatusOutOfResources, err)
	}
	ev := &Event{api: q.ctx.dev.api, profiling: q.profiling, done: make(chan struct{})}
	go ev.run(kernel.impl, args, globalWorkSize, q.ctx.dev.api.Options.ComputeUnits)
	q.pending = ev
	return ev, nil
}

// Flush implements device.Queue.
func (q *Queue) Flush() error { return nil }

// Finish implements device.Queue.
func (q *Queue) Finish() error {
	if q.released {
		return device.NewOpError("Finish", device.StatusInvalidCommandQueue, device.ErrReleased)
	}
	return q.drain()
}

// Release implements device.Queue.
func (q *Queue) Release() error {
	if q == nil || q.released {
		return nil
	}
	_ = q.drain()
	q.released = true
	q.ctx.dev.api.released("queue")
	return nil
}

// Event tracks one asynchronous host dispatch.
type Event struct {
	api        *API
	profiling  bool
	done       chan struct{}
	start, end int64
	err        error
	once       sync.Once
}

func (e *Event) run(impl *builtin, args []arg, n, workers int) {
	defer close(e.done)
	e.start = time.Now().UnixNano()
	e.err = execute(impl, args, n, workers)
	e.end = time.Now().UnixNano()
}

// Wait implements device.Event.
func (e *Event) Wait() error {
	<-e.done
	return e.err
}

// Timestamps implements device.Event.
func (e *Event) Timestamps() (int64, int64, error) {
	if !e.profiling {
		return 0, 0, device.NewOpError("Timestamps", device.StatusProfilingInfoNotAvailable,
			errors.New("queue created without profiling"))
	}
	select {
	case <-e.done:
		return e.start, e.end, nil
	default:
		return 0, 0, device.NewOpError("Timestamps", device.StatusProfilingInfoNotAvailable,
			errors.New("dispatch not complete"))
	}
}

// Release implements device.Event.
func (e *Event) Release() error {
	if e == nil {
		return nil
	}
	e.once.Do(func() {
		e.api.released("event")
	})
	return nil
}
