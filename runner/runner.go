// Package runner drives one kernel run: execution context, program build,
// device buffers, a single dispatch, read-back, verification and teardown.
package runner

import (
	"github.com/notargets/KernelHarness/config"
	"github.com/notargets/KernelHarness/device"
	"github.com/notargets/KernelHarness/operation"
	"github.com/notargets/KernelHarness/utils"
	"github.com/notargets/KernelHarness/verify"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Result of a completed run.
type Result struct {
	Operation operation.Kind
	Entry     string
	Device    string
	Inputs    [][]float32
	Factor    float32
	Output    []float32
	Timing    Timing
	// Report is nil when verification is disabled.
	Report *verify.Report
	// Simulated is set when the backend ran built-in implementations
	// instead of the kernel source.
	Simulated bool
}

// Runner holds every device resource of one run. Free releases them in
// reverse dependency order however far the run progressed.
type Runner struct {
	Config   config.Config
	Exec     *ExecutionContext
	Program  device.Program
	Buffers  *BufferManager
	Dispatch *Dispatcher
}

// NewRunner creates a Runner for a resolved configuration.
func NewRunner(cfg config.Config) *Runner {
	return &Runner{Config: cfg}
}

// Run generates the host inputs from the configuration and runs source on dev.
func (kr *Runner) Run(dev device.Device, source string) (*Result, error) {
	cfg := kr.Config
	inputs := utils.NewHostVectors(cfg.Operation.NumInputs(), cfg.Length(), cfg.FillMode(), cfg.Seed)
	return kr.RunVectors(dev, source, inputs)
}

// RunVectors runs source on dev over the given host inputs, one vector per
// input slot of the configured operation, all of equal length.
func (kr *Runner) RunVectors(dev device.Device, source string, inputs [][]float32) (*Result, error) {
	if kr.Exec != nil {
		return nil, errors.New("runner already used; create a new one per run")
	}
	op := kr.Config.Operation
	inputSlots := op.InputSlots()
	if len(inputSlots) == 0 {
		return nil, errors.Errorf("operation %s cannot be run", op)
	}
	if len(inputs) != len(inputSlots) {
		return nil, errors.Errorf("operation %s needs %d input vectors, got %d", op, len(inputSlots), len(inputs))
	}
	n := len(inputs[0])
	for i, v := range inputs {
		if len(v) != n {
			return nil, errors.Errorf("input %d has %d elements, input 0 has %d", i, len(v), n)
		}
	}

	ec, err := NewExecutionContext(dev, kr.Config.Profiling)
	if err != nil {
		return nil, err
	}
	kr.Exec = ec

	if kr.Program, err = BuildProgram(ec, source, kr.Config.BuildOpts); err != nil {
		return nil, err
	}
	if kr.Dispatch, err = NewDispatcher(kr.Program, kr.Config.Entry, op.Slots()); err != nil {
		return nil, err
	}

	res := &Result{
		Operation: op,
		Entry:     kr.Config.Entry,
		Device:    dev.Name(),
		Inputs:    inputs,
		Factor:    kr.Config.Factor,
		Output:    make([]float32, n),
	}
	if n == 0 {
		klog.Warningf("vector length is 0: nothing to dispatch")
		return res, kr.verify(res)
	}

	kr.Buffers = NewBufferManager(ec, kr.Config.Transfer)
	for _, slot := range op.Slots() {
		if slot.Kind != operation.BufferSlot {
			continue
		}
		mode := device.ReadOnly
		if slot.Output {
			mode = device.WriteOnly
		}
		if _, err := kr.Buffers.Allocate(slot.Name, n, mode); err != nil {
			return nil, err
		}
	}
	for i, slot := range inputSlots {
		if err := kr.Buffers.Write(slot.Name, inputs[i]); err != nil {
			return nil, err
		}
	}

	args, err := kr.Buffers.GetKernelArguments(op, kr.Config.Factor)
	if err != nil {
		return nil, err
	}
	if err := kr.Dispatch.BindArguments(args); err != nil {
		return nil, err
	}
	if err := kr.Dispatch.Submit(ec, n); err != nil {
		return nil, err
	}
	if res.Timing, err = kr.Dispatch.Await(); err != nil {
		return nil, err
	}
	if err := kr.Buffers.Read(op.OutputSlot().Name, res.Output); err != nil {
		return nil, err
	}
	return res, kr.verify(res)
}

func (kr *Runner) verify(res *Result) error {
	if !kr.Config.Verify {
		return nil
	}
	report, err := verify.Verify(res.Operation, verify.Inputs{Vectors: res.Inputs, Factor: res.Factor},
		res.Output, verify.Options{Tolerance: kr.Config.Tolerance})
	if err != nil {
		return errors.Wrap(err, "verifying results")
	}
	res.Report = report
	return nil
}

// Free waits for the queue, then releases the kernel and buffers, the
// program, and finally the queue and context. Every release is attempted;
// the first error is returned. Calling Free again is a no-op.
func (kr *Runner) Free() error {
	var first error
	keep := func(err error) {
		if err == nil {
			return
		}
		klog.Warningf("teardown: %v", err)
		if first == nil {
			first = err
		}
	}
	keep(kr.Exec.Finish())
	keep(kr.Dispatch.Free())
	kr.Dispatch = nil
	keep(kr.Buffers.Free())
	kr.Buffers = nil
	if kr.Program != nil {
		keep(errors.Wrap(kr.Program.Release(), "releasing program"))
		kr.Program = nil
	}
	keep(kr.Exec.Free())
	kr.Exec = nil
	return first
}

// Execute locates the configured device on api, runs source on it and tears
// everything down before returning.
func Execute(api device.API, cfg config.Config, source string) (res *Result, err error) {
	_, dev, err := device.Locate(api, cfg.Platform, cfg.Device, cfg.Class)
	if err != nil {
		return nil, err
	}
	simulated := device.IsSimulated(api)
	if simulated {
		klog.Warningf("backend %s simulates entry point %q; the kernel source is not executed", api.Name(), cfg.Entry)
	}
	kr := NewRunner(cfg)
	defer func() {
		if ferr := kr.Free(); ferr != nil && err == nil {
			err = errors.Wrap(ferr, "teardown")
		}
	}()
	if res, err = kr.Run(dev, source); res != nil {
		res.Simulated = simulated
	}
	return res, err
}
