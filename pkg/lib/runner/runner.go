// Package runner spawns and supervises the packager process.
package runner

import (
	"os/exec"
	"regexp"
	"sync"
	"time"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/output_storage"
)

const defaultTerminateGrace = 5 * time.Second

// SpawnFunc starts a process. It is replaced in tests by a scripted process.
type SpawnFunc func(command lib.Command, env []string) (Process, error)

// Supervisor spawns processes and reports their startup and final outcome.
type Supervisor struct {
	logger         *logger.Logger
	spawn          SpawnFunc
	readyPattern   *regexp.Regexp
	terminateGrace time.Duration
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithSpawnFunc replaces how processes are started.
func WithSpawnFunc(spawn SpawnFunc) Option {
	return func(s *Supervisor) { s.spawn = spawn }
}

// WithReadyPattern makes startup resolve only once stdout matches re.
// Without a pattern startup resolves as soon as the process is spawned.
func WithReadyPattern(re *regexp.Regexp) Option {
	return func(s *Supervisor) { s.readyPattern = re }
}

// WithTerminateGrace sets how long Terminate waits after SIGTERM before sending SIGKILL.
func WithTerminateGrace(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.terminateGrace = d
		}
	}
}

// NewSupervisor creates a Supervisor that spawns OS processes unless configured otherwise.
func NewSupervisor(log *logger.Logger, opts ...Option) *Supervisor {
	if log == nil {
		log = logger.Default()
	}
	s := &Supervisor{
		logger:         log.WithComponent("supervisor"),
		terminateGrace: defaultTerminateGrace,
	}
	s.spawn = s.startOSProcess
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// osProcess is a Process backed by exec.Cmd. It runs in its own process group.
type osProcess struct {
	id      string
	command lib.Command
	cmd     *exec.Cmd
	grace   time.Duration
	logger  *logger.Logger

	// status fields
	mu       sync.RWMutex
	state    lib.ProcessState
	exitCode *int
	start    time.Time
	end      *time.Time
	pid      int

	// output buffer (full replay)
	stdout *output_storage.OutputStorage
	stderr *output_storage.OutputStorage

	exited   *Future[int]
	failed   *Future[error]
	finished chan struct{}
}

func (p *osProcess) PID() int {
	return p.pid
}

func (p *osProcess) Exited() *Future[int] {
	return p.exited
}

func (p *osProcess) Failed() *Future[error] {
	return p.failed
}
