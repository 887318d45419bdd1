// Package packager manages the lifecycle of the bundler serving one project.
//
// A Manager only ever stops a packager it spawned itself. A packager found running
// at start is adopted as external: it is reported as running but left alone by Stop.
package packager

import (
	"net"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/retry"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/runner"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 8081

	statusSentinel = "packager-status:running"
	startFailure   = "Could not start the packager."

	// debuggerEnv stops the packager from opening a debugger page on its own.
	debuggerEnv = "REACT_DEBUGGER=echo A debugger is not needed: "
)

// DefaultRetryPolicy gives the packager about a minute to answer the status probe.
var DefaultRetryPolicy = retry.Policy{MaxAttempts: 30, Delay: 2 * time.Second, FailureMessage: startFailure}

// EnvironmentPreparer makes the project ready for the packager. Apply must be idempotent.
type EnvironmentPreparer interface {
	Apply() error
}

// Config describes the packager of one project.
type Config struct {
	Host         string
	Port         int
	ProjectPath  string
	Command      string
	Args         []string
	ReadyPattern *regexp.Regexp
	RetryPolicy  retry.Policy
	ProbeTimeout time.Duration
}

func (c *Config) address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Manager starts, stops and probes the packager.
type Manager struct {
	cfg        Config
	preparer   EnvironmentPreparer
	supervisor *runner.Supervisor
	client     *http.Client
	logger     *logger.Logger

	// opMu serialises Start, Stop and Restart.
	opMu sync.Mutex

	mu        sync.RWMutex
	state     lib.ServiceState
	ownership lib.Ownership
	owned     *runner.SpawnResult
	startedAt time.Time
}

// NewManager creates a Manager. Zero config values fall back to the defaults.
func NewManager(cfg Config, preparer EnvironmentPreparer, supervisor *runner.Supervisor, log *logger.Logger) *Manager {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.RetryPolicy.MaxAttempts == 0 {
		cfg.RetryPolicy = DefaultRetryPolicy
	}
	if cfg.RetryPolicy.FailureMessage == "" {
		cfg.RetryPolicy.FailureMessage = startFailure
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	if log == nil {
		log = logger.Default()
	}
	if supervisor == nil {
		supervisor = runner.NewSupervisor(log, runner.WithReadyPattern(cfg.ReadyPattern))
	}

	return &Manager{
		cfg:        cfg,
		preparer:   preparer,
		supervisor: supervisor,
		client:     &http.Client{Timeout: cfg.ProbeTimeout},
		logger:     log.WithComponent("packager"),
		state:      lib.ServiceStateStopped,
	}
}

// Snapshot is the state of the packager as seen by this Manager.
type Snapshot struct {
	State     lib.ServiceState
	Ownership lib.Ownership
	Address   string
	PID       int
	StartedAt time.Time
	Process   lib.ProcessStatus
}

// State returns the lifecycle state.
func (m *Manager) State() lib.ServiceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Ownership tells whether the running packager was spawned by this Manager.
func (m *Manager) Ownership() lib.Ownership {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ownership
}

// Status returns a snapshot of the lifecycle state and of the owned process, if any.
func (m *Manager) Status() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		State:     m.state,
		Ownership: m.ownership,
		Address:   m.cfg.address(),
		StartedAt: m.startedAt,
	}
	if m.owned != nil {
		snap.PID = m.owned.Process.PID()
		snap.Process = runner.Status(m.owned.Process)
	}
	return snap
}

// Process returns the owned packager process, or nil when none is owned.
func (m *Manager) Process() runner.Process {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.owned == nil {
		return nil
	}
	return m.owned.Process
}
