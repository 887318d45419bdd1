package runner

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Terminate stops the process. Returns nil if it is already gone.
func (s *Supervisor) Terminate(p Process) error {
	if p == nil {
		return nil
	}
	s.logger.Debug("terminating process", zap.Int("pid", p.PID()))
	if err := p.Terminate(); err != nil {
		s.logger.Warn("failed to terminate process", zap.Int("pid", p.PID()), zap.Error(err))
		return err
	}
	return nil
}

// Terminate sends SIGTERM to the process group and escalates to SIGKILL after the grace period.
func (p *osProcess) Terminate() error {
	select {
	case <-p.finished:
		return nil
	default:
	}

	if gone, err := signalGroup(p.pid, unix.SIGTERM); gone || err != nil {
		if gone {
			<-p.finished
		}
		return err
	}
	if p.awaitFinished(p.grace) {
		return nil
	}

	p.logger.Warn("process ignored SIGTERM, killing", zap.Duration("grace", p.grace))
	if gone, err := signalGroup(p.pid, unix.SIGKILL); err != nil {
		return err
	} else if gone {
		<-p.finished
		return nil
	}
	if p.awaitFinished(p.grace) {
		return nil
	}
	return fmt.Errorf("process %d still running after SIGKILL", p.pid)
}

func (p *osProcess) awaitFinished(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.finished:
		return true
	case <-timer.C:
		return false
	}
}

// signalGroup signals the whole process group led by pid. ESRCH means nothing is left to signal.
func signalGroup(pid int, sig unix.Signal) (gone bool, err error) {
	if pid <= 0 {
		return true, nil
	}
	// Negative PID means process group
	err = unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(pid, sig)
	}
	if errors.Is(err, unix.ESRCH) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("signal %s to process %d: %w", unix.SignalName(sig), pid, err)
	}
	return false, nil
}
