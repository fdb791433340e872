package opencl

import (
	"github.com/jgillich/go-opencl/cl"
	"github.com/notargets/KernelHarness/device"
	"github.com/pkg/errors"
)

// Queue wraps a cl.CommandQueue. Transfers are blocking.
type Queue struct {
	q *cl.CommandQueue
}

func buffer(buf device.Buffer) (*cl.MemObject, error) {
	b, ok := buf.(*Buffer)
	if !ok || b == nil || b.m == nil {
		return nil, device.NewOpError("buffer", device.StatusInvalidMemObject, errors.New("not a live OpenCL buffer"))
	}
	return b.m, nil
}

// WriteFloat32 implements device.Queue.
func (q *Queue) WriteFloat32(buf device.Buffer, offset int, data []float32) error {
	m, err := buffer(buf)
	if err != nil {
		return err
	}
	ev, err := q.q.EnqueueWriteBufferFloat32(m, true, offset, data, nil)
	if ev != nil {
		ev.Release()
	}
	return opError("clEnqueueWriteBuffer", err)
}

// ReadFloat32 implements device.Queue.
func (q *Queue) ReadFloat32(buf device.Buffer, offset int, data []float32) error {
	m, err := buffer(buf)
	if err != nil {
		return err
	}
	ev, err := q.q.EnqueueReadBufferFloat32(m, true, offset, data, nil)
	if ev != nil {
		ev.Release()
	}
	return opError("clEnqueueReadBuffer", err)
}

// Enqueue implements device.Queue. The local work size is left to the runtime.
func (q *Queue) Enqueue(k device.Kernel, globalWorkSize int) (device.Event, error) {
	kernel, ok := k.(*Kernel)
	if !ok || kernel == nil || kernel.k == nil {
		return nil, device.NewOpError("clEnqueueNDRangeKernel", device.StatusInvalidKernel,
			errors.New("not a live OpenCL kernel"))
	}
	ev, err := q.q.EnqueueNDRangeKernel(kernel.k, nil, []int{globalWorkSize}, nil, nil)
	if err != nil {
		return nil, opError("clEnqueueNDRangeKernel", err)
	}
	return &Event{e: ev}, nil
}

func (q *Queue) Flush() error  { return opError("clFlush", q.q.Flush()) }
func (q *Queue) Finish() error { return opError("clFinish", q.q.Finish()) }

// Release implements device.Queue.
func (q *Queue) Release() error {
	if q == nil || q.q == nil {
		return nil
	}
	q.q.Release()
	q.q = nil
	return nil
}

// Event wraps a cl.Event.
type Event struct {
	e *cl.Event
}

// Wait implements device.Event.
func (e *Event) Wait() error {
	return opError("clWaitForEvents", cl.WaitForEvents([]*cl.Event{e.e}))
}

// Timestamps implements device.Event.
func (e *Event) Timestamps() (start, end int64, err error) {
	if start, err = e.e.GetEventProfilingInfo(cl.ProfilingInfoCommandStart); err != nil {
		return 0, 0, device.NewOpError("clGetEventProfilingInfo", status(err, device.StatusProfilingInfoNotAvailable), err)
	}
	if end, err = e.e.GetEventProfilingInfo(cl.ProfilingInfoCommandEnd); err != nil {
		return 0, 0, device.NewOpError("clGetEventProfilingInfo", status(err, device.StatusProfilingInfoNotAvailable), err)
	}
	return start, end, nil
}

// Release implements device.Event.
func (e *Event) Release() error {
	if e == nil || e.e == nil {
		return nil
	}
	e.e.Release()
	e.e = nil
	return nil
}
