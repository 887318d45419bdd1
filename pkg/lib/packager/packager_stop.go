package packager

import (
	"context"

	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/errors"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/runner"
)

// Stop terminates the packager if this Manager spawned it.
//
// Nothing running and a packager owned by someone else are both logged as warnings
// and are not errors. Only a failed termination is returned.
func (m *Manager) Stop(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.stop(ctx)
}

func (m *Manager) stop(ctx context.Context) error {
	if !m.IsRunning(ctx) {
		m.logger.Warn(errors.ErrNotRunning.Error())
		return nil
	}

	m.mu.Lock()
	owned := m.owned
	if owned == nil {
		m.mu.Unlock()
		m.logger.Warn(errors.ErrNotOwned.Error())
		return nil
	}
	m.mu.Unlock()

	return m.terminateOwned(owned)
}

// Release terminates the owned packager without probing it first, so a packager that
// never answered is stopped too. It does nothing when no process is owned.
func (m *Manager) Release() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	owned := m.owned
	m.mu.RUnlock()
	if owned == nil {
		return nil
	}
	return m.terminateOwned(owned)
}

func (m *Manager) terminateOwned(owned *runner.SpawnResult) error {
	m.mu.Lock()
	previous := m.state
	m.state = lib.ServiceStateStopping
	m.mu.Unlock()

	if err := m.supervisor.Terminate(owned.Process); err != nil {
		m.mu.Lock()
		m.state = previous
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	if m.owned == owned {
		m.owned = nil
	}
	m.state = lib.ServiceStateStopped
	m.ownership = lib.OwnershipNone
	m.mu.Unlock()

	m.logger.Info("Packager stopped.", zap.Int("pid", owned.Process.PID()))
	return nil
}

// Restart stops an owned packager and starts it again.
func (m *Manager) Restart(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.stop(ctx); err != nil {
		return err
	}
	return m.start(ctx)
}
