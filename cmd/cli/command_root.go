package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/config"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
)

// cliOptions is shared by all commands. cfg and logger are set before any command runs.
type cliOptions struct {
	workspace string
	socket    string
	timeout   time.Duration

	cfg    *config.Config
	logger *logger.Logger
}

func NewRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "prc",
		Short:         "Packager Runner CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	root.PersistentFlags().StringVarP(&opts.workspace, "workspace", "w", "", "project directory served by the packager (default: current directory)")
	root.PersistentFlags().StringVar(&opts.socket, "socket", "", "control socket path (default: derived from the workspace)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "how long to wait for the server")

	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newStopCmd(opts))
	root.AddCommand(newRestartCmd(opts))
	root.AddCommand(newPrewarmCmd(opts))
	root.AddCommand(newStatusCmd(opts))

	return root
}

func (o *cliOptions) load() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.workspace != "" {
		abs, err := filepath.Abs(o.workspace)
		if err != nil {
			return fmt.Errorf("resolve workspace: %w", err)
		}
		cfg.Workspace.Path = abs
	}
	if o.socket != "" {
		cfg.IPC.SocketPath = o.socket
	}

	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = log
	return nil
}
