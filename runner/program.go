package runner

import (
	"fmt"

	"github.com/notargets/KernelHarness/device"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MaxBuildLogSize bounds the compiler log carried by a BuildError.
const MaxBuildLogSize = 16384

// BuildError is a failed program build. It is terminal for the run.
type BuildError struct {
	Device string
	Log    string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("error in kernel (device %s):\n%s", e.Device, e.Log)
}

func (e *BuildError) Unwrap() error { return e.Err }

// BuildProgram compiles source for the device of ec. On failure the program
// is released and the compiler log is returned verbatim, truncated to
// MaxBuildLogSize bytes.
func BuildProgram(ec *ExecutionContext, source, options string) (device.Program, error) {
	klog.V(1).Infof("Building program from source (%d bytes)", len(source))
	program, err := ec.Context.NewProgram(source)
	if err != nil {
		return nil, errors.Wrap(err, "creating program from source")
	}
	if err := program.Build(options); err != nil {
		if rerr := program.Release(); rerr != nil {
			klog.Warningf("failed to release program after build failure: %v", rerr)
		}
		log := err.Error()
		var failure *device.BuildFailure
		if errors.As(err, &failure) && failure.Log != "" {
			log = failure.Log
		}
		if len(log) > MaxBuildLogSize {
			log = log[:MaxBuildLogSize]
		}
		return nil, &BuildError{Device: ec.Device.Name(), Log: log, Err: err}
	}
	return program, nil
}
