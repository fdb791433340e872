package main

import (
	"github.com/notargets/KernelHarness/device"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "List the platforms and devices of a backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			class, err := device.ParseClass(a.className)
			if err != nil {
				return withCode(ExitConfig, err)
			}
			api, err := device.Open(a.backend, a.backendConfig)
			if err != nil {
				return withCode(ExitConfig, err)
			}
			if err := device.Describe(cmd.OutOrStdout(), api, class); err != nil {
				return withCode(deviceExitCode(err), errors.Wrapf(err, "describing backend %s", a.backend))
			}
			return nil
		},
	}
}
