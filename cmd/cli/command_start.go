package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/messaging"
)

func newStartCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Ask the server to start the packager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, opts, messaging.StartPackager)
		},
	}
	return cmd
}

func newRestartCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Ask the server to restart the packager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, opts, messaging.RestartPackager)
		},
	}
	return cmd
}

func newPrewarmCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prewarm <platform>",
		Short: "Ask the server to build the bundle for a platform ahead of time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, opts, messaging.PrewarmBundleCache, args[0])
		},
	}
	return cmd
}

// sendCommand delivers message to the server. Delivery is all the server acknowledges.
func sendCommand(cmd *cobra.Command, opts *cliOptions, message messaging.Message, args ...any) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	if err := opts.sender().SendMessage(ctx, message, args...); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), message)
	return nil
}
