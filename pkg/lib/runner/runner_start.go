package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/output_storage"
)

// startOSProcess starts command with env appended to the current environment.
func (s *Supervisor) startOSProcess(command lib.Command, env []string) (Process, error) {
	if command.Command == "" {
		return nil, errors.New("command is required")
	}
	processID := lib.NewID()

	cmd := exec.Command(command.Command, command.Args...)
	cmd.Dir = command.Dir
	cmd.Env = append(os.Environ(), env...)
	cmd.SysProcAttr = sysProcAttr()

	stdout := output_storage.NewOutputStorage()
	stderr := output_storage.NewOutputStorage()

	// cmd.Stdin is left nil, so it will use /dev/null
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log := s.logger.WithFields(zap.String("process_id", processID), zap.String("command", command.Command))
	p := &osProcess{
		id:       processID,
		command:  lib.Command{Command: command.Command, Args: append([]string(nil), command.Args...), Dir: command.Dir},
		cmd:      cmd,
		grace:    s.terminateGrace,
		logger:   log,
		state:    lib.ProcessStateRunning,
		start:    time.Now(),
		stdout:   stdout,
		stderr:   stderr,
		exited:   NewFuture[int](),
		failed:   NewFuture[error](),
		finished: make(chan struct{}),
	}

	log.Debug("starting process", zap.Strings("args", command.Args))
	if err := cmd.Start(); err != nil {
		log.Error("failed to start process", zap.Error(err))
		return nil, fmt.Errorf("start %s: %w", command.Command, err)
	}
	p.pid = cmd.Process.Pid

	go p.wait()

	return p, nil
}

// wait reaps the process and settles its signals.
func (p *osProcess) wait() {
	defer close(p.finished)

	err := p.cmd.Wait()

	// Wait returns after the output copies finished, so the streams are complete here.
	p.stdout.Stop()
	p.stderr.Stop()

	var code *int
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			c := exitCode(exitErr)
			code = &c
		}
	} else {
		c := 0
		code = &c
	}

	p.mu.Lock()
	p.exitCode = code
	now := time.Now()
	p.end = &now
	p.state = lib.ProcessStateStopped
	p.mu.Unlock()

	if code == nil {
		p.logger.Warn("process finished with error", zap.Error(err))
		p.failed.Resolve(err)
		return
	}
	p.logger.Debug("process finished", zap.Int("exit_code", *code))
	p.exited.Resolve(*code)
}

// exitCode maps a signal death to 128+signal, the way shells report it.
func exitCode(exitErr *exec.ExitError) int {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}
