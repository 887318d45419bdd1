package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/packager"
)

func newStatusCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe the packager and show whether the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			cfg := opts.cfg
			manager := packager.NewManager(packager.Config{
				Host:         cfg.Packager.Host,
				Port:         cfg.Packager.Port,
				ProjectPath:  cfg.Workspace.Path,
				Command:      cfg.Packager.Command,
				ProbeTimeout: cfg.Packager.ProbeTimeout(),
			}, nil, nil, opts.logger)

			state := lib.ServiceStateStopped
			if manager.IsRunning(ctx) {
				state = lib.ServiceStateRunning
			}

			printStatusTable(cmd.OutOrStdout(), statusRow{
				Workspace: lib.WorkspaceID(cfg.Workspace.Path),
				Address:   manager.Status().Address,
				State:     state,
				Server:    socketExists(opts.socketPath()),
			})
			return nil
		},
	}
	return cmd
}

func socketExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode()&os.ModeSocket != 0
}
