package main

import (
	"github.com/spf13/cobra"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/messaging"
)

func newStopCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask the server to stop the packager it started",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, opts, messaging.StopPackager)
		},
	}
	return cmd
}
