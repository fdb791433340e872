package main

import (
	"os"

	"github.com/notargets/KernelHarness/config"
	"github.com/notargets/KernelHarness/device"
	"github.com/notargets/KernelHarness/runner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

// ErrVerification is returned in strict mode when the output differs from
// the host computation.
var ErrVerification = errors.New("verification failed")

type runFlags struct {
	configFile string
	length     int
	check      bool
	strict     bool
	factor     float32
	tolerance  float64
	platform   int
	device     int
	op         string
	entry      string
	fill       string
	transfer   string
	buildOpts  string
	seed       uint64
	pocl       bool
	noProfile  bool
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <kernel file>",
		Short: "Build and run a kernel file once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config(a, cmd, args[0])
			if err != nil {
				return err
			}
			return a.run(cmd, cfg)
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func (f *runFlags) register(fl *pflag.FlagSet) {
	fl.StringVar(&f.configFile, "config", "", "YAML run configuration")
	fl.IntVarP(&f.length, "length", "n", 0, "Vector length (default 65536 for saxpy, 1024 otherwise)")
	fl.BoolVar(&f.check, "check", false, "Verify the output against the host")
	fl.BoolVar(&f.strict, "strict", false, "Exit non-zero when verification fails")
	fl.Float32Var(&f.factor, "factor", config.DefaultFactor, "Scale factor of saxpy")
	fl.Float64Var(&f.tolerance, "tolerance", 0, "Absolute or relative tolerance of the check (0 = exact)")
	fl.IntVar(&f.platform, "platform", 0, "Platform ordinal")
	fl.IntVar(&f.device, "device", 0, "Device ordinal within the platform")
	fl.StringVar(&f.op, "op", "", "Operation, overriding the file name: saxpy, sum, product")
	fl.StringVar(&f.entry, "entry", "", "Kernel entry point (default from the file name)")
	fl.StringVar(&f.fill, "fill", "", "Input fill: sequence or random (default per operation)")
	fl.StringVar(&f.transfer, "transfer", string(config.TransferBlock), "Buffer transfers: block or element")
	fl.StringVar(&f.buildOpts, "build-options", "", "Compiler options passed to the program build")
	fl.Uint64Var(&f.seed, "seed", 1, "Seed of the random fill")
	fl.BoolVar(&f.pocl, "pocl", false, "Set the POCL debugging environment")
	fl.BoolVar(&f.noProfile, "no-profiling", false, "Create the queue without profiling")
}

// config layers the environment, the YAML file and the changed flags, in
// that order, and resolves the result.
func (f *runFlags) config(a *app, cmd *cobra.Command, kernelFile string) (config.Config, error) {
	cfg := config.New()
	if err := cfg.FromEnv(a.lookupEnv); err != nil {
		return cfg, err
	}
	if f.configFile != "" {
		if err := cfg.Load(f.configFile); err != nil {
			return cfg, err
		}
	}
	changed := func(name string) bool { return cmd.Flags().Changed(name) }

	cfg.KernelFile = kernelFile
	if changed("backend") || cfg.Backend == "" {
		cfg.Backend = a.backend
	}
	if changed("backend-config") {
		cfg.BackendConfig = a.backendConfig
	}
	if changed("class") {
		cfg.ClassName = a.className
	}
	if changed("length") {
		cfg.SetLength(f.length)
	}
	if changed("check") {
		cfg.Verify = f.check
	}
	if changed("strict") {
		cfg.Strict = f.strict
	}
	if changed("factor") {
		cfg.Factor = f.factor
	}
	if changed("tolerance") {
		cfg.Tolerance = f.tolerance
	}
	if changed("platform") {
		cfg.Platform = f.platform
	}
	if changed("device") {
		cfg.Device = f.device
	}
	if changed("op") {
		cfg.OpName = f.op
	}
	if changed("entry") {
		cfg.Entry = f.entry
	}
	if changed("fill") {
		cfg.FillName = f.fill
	}
	if changed("transfer") {
		cfg.Transfer = config.TransferMode(f.transfer)
	}
	if changed("build-options") {
		cfg.BuildOpts = f.buildOpts
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("pocl") {
		cfg.PoclVerbose = f.pocl
	}
	if changed("no-profiling") {
		cfg.Profiling = !f.noProfile
	}
	return cfg, cfg.Resolve()
}

func (a *app) run(cmd *cobra.Command, cfg config.Config) error {
	if cfg.PoclVerbose {
		for k, v := range config.PoclEnvironment {
			if err := a.setEnv(k, v); err != nil {
				return withCode(ExitConfig, errors.Wrapf(err, "setting %s", k))
			}
		}
	}
	source, err := os.ReadFile(cfg.KernelFile)
	if err != nil {
		return withCode(ExitConfig, errors.Wrap(err, "reading kernel source"))
	}
	api, err := device.Open(cfg.Backend, cfg.BackendConfig)
	if err != nil {
		return withCode(ExitConfig, err)
	}
	klog.V(1).Infof("Running %s (%s, entry %s) on backend %s, %d elements",
		cfg.KernelFile, cfg.Operation, cfg.Entry, api.Name(), cfg.Length())

	res, err := runner.Execute(api, cfg, string(source))
	if err != nil {
		return withCode(deviceExitCode(err), err)
	}
	res.Print(cmd.OutOrStdout())
	if cfg.Strict && res.Report != nil && !res.Report.AllMatched {
		return withCode(ExitDevice, errors.Wrapf(ErrVerification, "%d of %d elements differ",
			len(res.Report.Mismatches), res.Report.Checked))
	}
	return nil
}
