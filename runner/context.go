package runner

import (
	"github.com/notargets/KernelHarness/device"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ExecutionContext owns the compute context and the single command queue of
// a run. It is the root of every other resource lifetime and is freed last.
type ExecutionContext struct {
	Device    device.Device
	Context   device.Context
	Queue     device.Queue
	Profiling bool
}

// NewExecutionContext binds dev and creates its queue. With profiling set the
// queue must deliver event timestamps or creation fails.
func NewExecutionContext(dev device.Device, profiling bool) (*ExecutionContext, error) {
	if dev == nil {
		return nil, errors.New("no device selected")
	}
	klog.V(1).Infof("Creating context on %q", dev.Name())
	ctx, err := dev.NewContext()
	if err != nil {
		return nil, errors.Wrapf(err, "creating context on %q", dev.Name())
	}
	klog.V(1).Infof("Creating command queue (profiling=%v)", profiling)
	queue, err := ctx.NewQueue(profiling)
	if err != nil {
		if rerr := ctx.Release(); rerr != nil {
			klog.Warningf("failed to release context after queue failure: %v", rerr)
		}
		return nil, errors.Wrapf(err, "creating command queue on %q", dev.Name())
	}
	return &ExecutionContext{Device: dev, Context: ctx, Queue: queue, Profiling: profiling}, nil
}

// Finish flushes the queue and blocks until everything submitted completed.
func (ec *ExecutionContext) Finish() error {
	if ec == nil || ec.Queue == nil {
		return nil
	}
	if err := ec.Queue.Flush(); err != nil {
		return errors.Wrap(err, "flushing queue")
	}
	return errors.Wrap(ec.Queue.Finish(), "finishing queue")
}

// Free releases the queue then the context. Calling it again is a no-op.
func (ec *ExecutionContext) Free() error {
	if ec == nil {
		return nil
	}
	var first error
	if ec.Queue != nil {
		first = errors.Wrap(ec.Queue.Release(), "releasing queue")
		ec.Queue = nil
	}
	if ec.Context != nil {
		if err := ec.Context.Release(); err != nil && first == nil {
			first = errors.Wrap(err, "releasing context")
		}
		ec.Context = nil
	}
	return first
}
