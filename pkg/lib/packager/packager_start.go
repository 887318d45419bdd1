package packager

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/errors"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/retry"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/runner"
)

// Start makes sure the packager is running.
//
// A packager already answering the status probe is adopted as external. Otherwise the
// environment is prepared, the packager is spawned and the probe is polled until it
// answers or the retry budget is exhausted, which fails with *errors.TimeoutError.
// An owned process still alive from an earlier start is waited for again, never
// spawned twice. A process that exits before it is ready fails Start right away.
func (m *Manager) Start(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.start(ctx)
}

func (m *Manager) start(ctx context.Context) error {
	if m.IsRunning(ctx) {
		m.adoptRunning()
		return nil
	}

	res := m.liveOwned()
	if res != nil {
		// spawned by an earlier start that timed out
		m.logger.Info("Waiting for the packager started earlier.", zap.Int("pid", res.Process.PID()))
	} else {
		if m.preparer != nil {
			if err := m.preparer.Apply(); err != nil {
				var prepErr *errors.PreparationError
				if !errors.As(err, &prepErr) {
					err = errors.NewPreparationError("environment", nil, err)
				}
				m.logger.Error("failed to prepare the environment", zap.Error(err))
				return err
			}
		}

		var err error
		if res, err = m.spawn(); err != nil {
			return err
		}
	}

	if err := m.awaitRunning(ctx, res); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = lib.ServiceStateRunning
	m.ownership = lib.OwnershipOwned
	if m.owned == nil {
		// the spawned process already exited but something answers the probe
		m.ownership = lib.OwnershipExternal
	}
	m.mu.Unlock()

	m.logger.Info("Packager started.")
	return nil
}

// liveOwned returns the owned process unless it already exited or failed.
func (m *Manager) liveOwned() *runner.SpawnResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.owned == nil || m.owned.Process.Exited().Settled() || m.owned.Process.Failed().Settled() {
		return nil
	}
	return m.owned
}

// awaitRunning polls the status probe until it answers. A process that fails its
// startup ends the wait early.
func (m *Manager) awaitRunning(ctx context.Context, res *runner.SpawnResult) error {
	_, err := retry.AsyncWithLogger(m.logger, func() (bool, error) {
		if res.Startup.Settled() {
			if _, startErr := res.Startup.Wait(); startErr != nil {
				return false, fmt.Errorf("packager failed to start: %w", startErr)
			}
		}
		return m.IsRunning(ctx), nil
	}, func(running bool) bool { return running }, m.cfg.RetryPolicy)
	if err != nil {
		// the process stays owned so that Release can still terminate it
		m.logger.Error("packager did not answer the status probe", zap.Error(err))
	}
	return err
}

func (m *Manager) adoptRunning() {
	m.mu.Lock()
	external := m.owned == nil
	m.state = lib.ServiceStateRunning
	if external {
		m.ownership = lib.OwnershipExternal
	} else {
		m.ownership = lib.OwnershipOwned
	}
	m.mu.Unlock()

	m.logger.Info("Packager is already running.")
	if external {
		m.logger.Warn("Debugging is not supported if the React Native Packager is not started by packager-runner. " +
			"If debugging fails, please kill other active React Native packager processes and retry.")
	}
}

func (m *Manager) spawn() (*runner.SpawnResult, error) {
	args := append(append([]string(nil), m.cfg.Args...), "--port", strconv.Itoa(m.cfg.Port))
	command := lib.Command{Command: m.cfg.Command, Args: args, Dir: m.cfg.ProjectPath}

	m.logger.Info("Starting Packager", zap.String("command", command.Command), zap.Strings("args", command.Args))
	res, err := m.supervisor.Spawn(command, []string{debuggerEnv})
	if err != nil {
		m.logger.Error("failed to spawn the packager", zap.Error(err))
		return nil, err
	}

	m.mu.Lock()
	m.owned = res
	m.state = lib.ServiceStateStarting
	m.ownership = lib.OwnershipOwned
	m.startedAt = time.Now()
	m.mu.Unlock()

	go m.watchStartup(res)
	go m.watchOutcome(res)
	return res, nil
}

func (m *Manager) watchStartup(res *runner.SpawnResult) {
	if _, err := res.Startup.Wait(); err != nil {
		m.logger.Debug("packager did not report ready", zap.Error(err))
		return
	}
	m.logger.Debug("packager reported ready", zap.Int("pid", res.Process.PID()))
}

// watchOutcome releases ownership once the owned process is gone. Its failures never reach Start.
func (m *Manager) watchOutcome(res *runner.SpawnResult) {
	code, err := res.Outcome.Wait()
	if err != nil {
		m.logger.Debug("packager process ended", zap.Error(err))
	} else {
		m.logger.Debug("packager process exited", zap.Int("exit_code", code))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owned != res {
		return
	}
	m.owned = nil
	m.state = lib.ServiceStateStopped
	m.ownership = lib.OwnershipNone
}
