package main

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/config"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/messaging"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/packager"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/prepare"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/retry"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/runner"
)

// PackagerServer handles control messages for the packager of one workspace.
type PackagerServer struct {
	manager *packager.Manager
	logger  *logger.Logger

	mu        sync.Mutex
	forwarded runner.Process
}

// NewPackagerServer builds the packager manager described by cfg.
func NewPackagerServer(cfg *config.Config, log *logger.Logger) (*PackagerServer, error) {
	var ready *regexp.Regexp
	if cfg.Packager.ReadyPattern != "" {
		re, err := regexp.Compile(cfg.Packager.ReadyPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid packager.readyPattern: %w", err)
		}
		ready = re
	}

	var preparer packager.EnvironmentPreparer = prepare.Noop{}
	if cfg.Packager.PatchOpn {
		preparer = prepare.NewOpnPatcher(cfg.Workspace.Path, log)
	}

	supervisor := runner.NewSupervisor(log,
		runner.WithReadyPattern(ready),
		runner.WithTerminateGrace(cfg.Supervisor.TerminateGrace()))

	manager := packager.NewManager(packager.Config{
		Host:         cfg.Packager.Host,
		Port:         cfg.Packager.Port,
		ProjectPath:  cfg.Workspace.Path,
		Command:      cfg.Packager.Command,
		Args:         cfg.Packager.Args,
		ReadyPattern: ready,
		RetryPolicy: retry.Policy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			Delay:          cfg.Retry.Delay(),
			FailureMessage: "Could not start the packager.",
		},
		ProbeTimeout: cfg.Packager.ProbeTimeout(),
	}, preparer, supervisor, log)

	return &PackagerServer{manager: manager, logger: log.WithComponent("server")}, nil
}

// Register installs the message handlers on l.
func (s *PackagerServer) Register(l *messaging.Listener) {
	l.Handle(messaging.StartPackager, s.Start)
	l.Handle(messaging.StopPackager, s.Stop)
	l.Handle(messaging.RestartPackager, s.Restart)
	l.Handle(messaging.PrewarmBundleCache, s.Prewarm)
}
