package main

import (
	goflag "flag"
	"fmt"
	"io"
	"os"

	"github.com/notargets/KernelHarness/config"
	"github.com/notargets/KernelHarness/device"
	_ "github.com/notargets/KernelHarness/device/host"
	_ "github.com/notargets/KernelHarness/device/occa"
	_ "github.com/notargets/KernelHarness/device/opencl"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitConfig = 1
	ExitDevice = 2
)

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode maps an error to an exit code. Errors not tagged with a code are
// usage or configuration errors.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitConfig
}

// deviceExitCode classifies an error from a backend. Enumeration failures
// count as configuration errors; anything else came from the device API.
func deviceExitCode(err error) int {
	var idx *device.IndexError
	switch {
	case errors.Is(err, config.ErrInvalid),
		errors.Is(err, device.ErrNoPlatform),
		errors.Is(err, device.ErrNoDevice),
		errors.As(err, &idx):
		return ExitConfig
	}
	return ExitDevice
}

// app is the state shared by the commands of one invocation.
type app struct {
	out       io.Writer
	lookupEnv func(string) (string, bool)
	setEnv    func(key, value string) error

	backend       string
	backendConfig string
	className     string
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "clrun",
		Short: "Build and run a vector kernel on a compute device",
		Long: `clrun builds a kernel source file for a selected platform and device,
runs it once over generated input vectors, and optionally verifies the
output against a host computation.

The operation is chosen by the file name prefix: saxpy, vecadd, vecmul,
dsum or dmul. saxpy, dsum and dmul take (input, output, factor); vecadd
and vecmul take (a, b, c). The VECTOR, CHECK, FACTOR, PLATFORM, DEVICE and
POCL environment variables are read before flags are applied.

The host backend does not compile kernel source. It checks the source
lexically and runs a built-in Go implementation of each known entry point,
so a check passing on host says nothing about the kernel body. Its output
carries a warning to that effect. Use it for dry runs of the harness.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)

	fs := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(fs)
	root.PersistentFlags().AddGoFlagSet(fs)

	pf := root.PersistentFlags()
	pf.StringVar(&a.backend, "backend", config.DefaultBackend,
		fmt.Sprintf("Compute backend (%v)", device.Registered()))
	pf.StringVar(&a.backendConfig, "backend-config", "", "Backend specific configuration string")
	pf.StringVar(&a.className, "class", "", "Device class: any, cpu, gpu, accelerator")

	root.AddCommand(newRunCmd(a), newInfoCmd(a))
	return root
}

// Execute runs the command line args and returns the process exit code.
func Execute(args []string, lookupEnv func(string) (string, bool)) int {
	a := &app{out: os.Stdout, lookupEnv: lookupEnv, setEnv: os.Setenv}
	return execute(a, args)
}

func execute(a *app, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.Execute()
	if err != nil {
		klog.Errorf("%v", err)
	}
	return exitCode(err)
}
