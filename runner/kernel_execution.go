package runner

import (
	"time"

	"github.com/notargets/KernelHarness/device"
	"github.com/notargets/KernelHarness/operation"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// ErrUnboundSlot is a submission with argument slots left unbound.
	ErrUnboundSlot = errors.New("kernel argument slot not bound")
	// ErrEmptyRange is a submission of zero work items.
	ErrEmptyRange = errors.New("global work size is zero")
	// ErrBadState is a dispatch operation out of Unsubmitted → Queued → Running order.
	ErrBadState = errors.New("invalid dispatch state")
)

// Dispatcher owns the kernel object of a run and its single submission.
type Dispatcher struct {
	Kernel device.Kernel
	Slots  []operation.Slot
	State  DispatchState

	bound     []bool
	event     device.Event
	profiling bool
	submitted time.Time
}

// NewDispatcher extracts entry from program. entry must name a kernel
// defined in the program exactly.
func NewDispatcher(program device.Program, entry string, slots []operation.Slot) (*Dispatcher, error) {
	klog.V(1).Infof("Creating kernel %q", entry)
	kernel, err := program.NewKernel(entry)
	if err != nil {
		return nil, errors.Wrapf(err, "kernel entry point %q", entry)
	}
	return &Dispatcher{
		Kernel: kernel,
		Slots:  slots,
		bound:  make([]bool, len(slots)),
	}, nil
}

// Bind sets slot to value (a device.Buffer or float32).
func (d *Dispatcher) Bind(slot int, value any) error {
	if d.State != Unsubmitted {
		return errors.Wrapf(ErrBadState, "binding slot %d in state %s", slot, d.State)
	}
	if slot < 0 || slot >= len(d.Slots) {
		return errors.Errorf("slot %d out of range: kernel %s has %d slots", slot, d.Kernel.Name(), len(d.Slots))
	}
	if err := d.Kernel.SetArg(slot, value); err != nil {
		return errors.Wrapf(err, "binding %s to slot %d of %s", d.Slots[slot].Name, slot, d.Kernel.Name())
	}
	d.bound[slot] = true
	return nil
}

// BindArguments binds args in positional order.
func (d *Dispatcher) BindArguments(args []KernelArgument) error {
	for _, arg := range args {
		if err := d.Bind(arg.Slot.Index, arg.Value); err != nil {
			return err
		}
	}
	return nil
}

// Submit launches one 1-D range of globalWorkSize work items on the queue of
// ec. No work-group size is given; the runtime partitions the range.
func (d *Dispatcher) Submit(ec *ExecutionContext, globalWorkSize int) error {
	if d.State != Unsubmitted {
		return errors.Wrapf(ErrBadState, "submit in state %s", d.State)
	}
	for i, ok := range d.bound {
		if !ok {
			return errors.Wrapf(ErrUnboundSlot, "slot %d (%s) of %s", i, d.Slots[i].Name, d.Kernel.Name())
		}
	}
	if globalWorkSize <= 0 {
		return errors.Wrapf(ErrEmptyRange, "kernel %s", d.Kernel.Name())
	}
	klog.V(1).Infof("Enqueueing kernel %s over %d work items", d.Kernel.Name(), globalWorkSize)
	d.submitted = time.Now()
	event, err := ec.Queue.Enqueue(d.Kernel, globalWorkSize)
	if err != nil {
		d.State = Failed
		return errors.Wrapf(err, "enqueueing kernel %s", d.Kernel.Name())
	}
	d.event = event
	d.profiling = ec.Profiling
	d.State = Queued
	return nil
}

// Await blocks until the dispatch completes and releases its event. There is
// no timeout: a hung device blocks forever.
func (d *Dispatcher) Await() (Timing, error) {
	var timing Timing
	if d.State != Queued {
		return timing, errors.Wrapf(ErrBadState, "await in state %s", d.State)
	}
	d.State = Running
	defer d.releaseEvent()

	if err := d.event.Wait(); err != nil {
		d.State = Failed
		return timing, errors.Wrapf(err, "waiting for kernel %s", d.Kernel.Name())
	}
	timing.Host = time.Since(d.submitted)
	if d.profiling {
		start, end, err := d.event.Timestamps()
		if err != nil {
			d.State = Failed
			return timing, errors.Wrapf(err, "reading profiling info of kernel %s", d.Kernel.Name())
		}
		timing.Start, timing.End = start, end
	}
	d.State = Complete
	return timing, nil
}

func (d *Dispatcher) releaseEvent() {
	if d.event == nil {
		return
	}
	if err := d.event.Release(); err != nil {
		klog.Warningf("failed to release event of kernel %s: %v", d.Kernel.Name(), err)
	}
	d.event = nil
}

// Free releases a pending event and the kernel. Calling it again is a no-op.
func (d *Dispatcher) Free() error {
	if d == nil {
		return nil
	}
	d.releaseEvent()
	if d.Kernel == nil {
		return nil
	}
	err := d.Kernel.Release()
	d.Kernel = nil
	return errors.Wrap(err, "releasing kernel")
}
