package runner

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
)

// SpawnResult bundles a spawned process with its two outcome signals.
type SpawnResult struct {
	Process Process

	// Startup resolves once the process is ready, and is rejected if it exits
	// or fails before that.
	Startup *Future[struct{}]

	// Outcome resolves with 0 on a clean exit and is rejected with *ExitError
	// on a non-zero exit, or with the error the process reported.
	Outcome *Future[int]
}

// Spawn starts command and begins watching it. Output streams are subscribed before
// Spawn returns, so nothing the process writes is missed.
func (s *Supervisor) Spawn(command lib.Command, env []string) (*SpawnResult, error) {
	if command.Command == "" {
		return nil, errors.New("command is required")
	}

	p, err := s.spawn(command, env)
	if err != nil {
		return nil, err
	}

	res := &SpawnResult{
		Process: p,
		Startup: NewFuture[struct{}](),
		Outcome: NewFuture[int](),
	}
	stdout := p.Stdout(16)
	go s.watchStartup(p, stdout, res.Startup)
	go s.watchOutcome(p, res.Outcome)

	s.logger.Info("process spawned", zap.String("command", command.Command), zap.Int("pid", p.PID()))
	return res, nil
}

func (s *Supervisor) watchStartup(p Process, stdout <-chan []byte, startup *Future[struct{}]) {
	// the subscription is drained until the stream ends in every path
	defer func() {
		if stdout != nil {
			for range stdout {
			}
		}
	}()

	if s.readyPattern == nil {
		startup.Resolve(struct{}{})
		return
	}

	var seen []byte
	matched := func(chunk []byte) bool {
		seen = append(seen, chunk...)
		return s.readyPattern.Match(seen)
	}

	for {
		select {
		case chunk, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			if matched(chunk) {
				s.logger.Debug("process reported ready", zap.Int("pid", p.PID()))
				startup.Resolve(struct{}{})
				return
			}
		case <-p.Exited().Done():
			// output written before the exit still counts
			for stdout != nil {
				chunk, ok := <-stdout
				if !ok {
					stdout = nil
					break
				}
				if matched(chunk) {
					startup.Resolve(struct{}{})
					return
				}
			}
			code, _ := p.Exited().Wait()
			startup.Reject(fmt.Errorf("process exited with code %d before it was ready", code))
			return
		case <-p.Failed().Done():
			procErr, _ := p.Failed().Wait()
			startup.Reject(procErr)
			return
		}
	}
}

func (s *Supervisor) watchOutcome(p Process, outcome *Future[int]) {
	select {
	case <-p.Exited().Done():
		code, _ := p.Exited().Wait()
		if code == 0 {
			outcome.Resolve(0)
			return
		}
		s.logger.Debug("process exited with non-zero code", zap.Int("pid", p.PID()), zap.Int("exit_code", code))
		outcome.Reject(&ExitError{Code: code})
	case <-p.Failed().Done():
		procErr, _ := p.Failed().Wait()
		outcome.Reject(procErr)
	}
}
