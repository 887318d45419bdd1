package simulator

import (
	"errors"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/output_storage"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/runner"
)

// Process is the simulated runner.Process. It is driven only by the simulator;
// Terminate does nothing.
type Process struct {
	pid    int
	stdout *output_storage.OutputStorage
	stderr *output_storage.OutputStorage
	exited *runner.Future[int]
	failed *runner.Future[error]
}

var _ runner.Process = (*Process)(nil)

func newProcess(pid int) *Process {
	return &Process{
		pid:    pid,
		stdout: output_storage.NewOutputStorage(),
		stderr: output_storage.NewOutputStorage(),
		exited: runner.NewFuture[int](),
		failed: runner.NewFuture[error](),
	}
}

func (p *Process) PID() int                          { return p.pid }
func (p *Process) Stdout(capacity int) <-chan []byte { return p.stdout.Subscribe(capacity) }
func (p *Process) Stderr(capacity int) <-chan []byte { return p.stderr.Subscribe(capacity) }
func (p *Process) Exited() *runner.Future[int]       { return p.exited }
func (p *Process) Failed() *runner.Future[error]     { return p.failed }
func (p *Process) Terminate() error                  { return nil }

func (p *Process) fail(msg string) {
	p.failed.Resolve(errors.New(msg))
}

// exit ends both streams before the exit signal, as a real process does.
func (p *Process) exit(code int) {
	p.stdout.Stop()
	p.stderr.Stop()
	p.exited.Resolve(code)
}
