// Package simulator replays recorded process executions so the packager lifecycle
// can be tested without spawning a bundler.
//
// A recording is replayed strictly in order with a scheduling yield before every
// event. Side effects are attached to stdout through rules: a chunk rule is matched
// against each chunk on its own, a whole-output rule against everything written so
// far and fires at most once. Rules matched by one chunk run in order of where they
// matched in the output, before the chunk is emitted.
package simulator

import (
	"cmp"
	"fmt"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/runner"
)

// Rule is a stdout side effect.
type Rule struct {
	Pattern     *regexp.Regexp
	WholeOutput bool
	Action      func() error
}

// ChunkRule fires every time a single stdout chunk matches pattern.
func ChunkRule(pattern *regexp.Regexp, action func() error) Rule {
	return Rule{Pattern: pattern, Action: action}
}

// WholeOutputRule fires once, the first time the accumulated stdout matches pattern.
func WholeOutputRule(pattern *regexp.Regexp, action func() error) Rule {
	return Rule{Pattern: pattern, WholeOutput: true, Action: action}
}

// SideEffects are the hooks run while a recording is replayed. All fields are optional.
type SideEffects struct {
	BeforeStart   func() error
	Rules         []Rule
	BeforeSuccess func(stdout, stderr string) error
}

type declaredRule struct {
	Rule
	order int
}

type matchedRule struct {
	declaredRule
	offset int
}

// Simulator replays recordings into one simulated Process.
type Simulator struct {
	logger  *logger.Logger
	effects SideEffects
	timing  bool
	actions map[string]func() error
	process *Process

	mu         sync.Mutex
	chunkRules []declaredRule
	wholeRules []declaredRule
	stdout     strings.Builder
	stderr     strings.Builder
	events     []Event
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithTiming honours the After delay of every event. Without it events only yield.
func WithTiming() Option {
	return func(s *Simulator) { s.timing = true }
}

// WithActions registers named actions for custom events loaded from JSON.
func WithActions(actions map[string]func() error) Option {
	return func(s *Simulator) { s.actions = actions }
}

// WithPID sets the pid the simulated process reports.
func WithPID(pid int) Option {
	return func(s *Simulator) { s.process.pid = pid }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Simulator) { s.logger = log.WithComponent("simulator") }
}

// New creates a simulator for effects.
func New(effects SideEffects, opts ...Option) *Simulator {
	s := &Simulator{
		logger:  logger.NewNop(),
		effects: effects,
		process: newProcess(0),
	}
	for i, r := range effects.Rules {
		dr := declaredRule{Rule: r, order: i}
		if r.WholeOutput {
			s.wholeRules = append(s.wholeRules, dr)
		} else {
			s.chunkRules = append(s.chunkRules, dr)
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process returns the simulated process.
func (s *Simulator) Process() *Process {
	return s.process
}

// Spawn is a runner.SpawnFunc returning the simulated process.
func (s *Simulator) Spawn(command lib.Command, env []string) (runner.Process, error) {
	s.logger.Debug("spawning simulated process", zap.String("command", command.Command), zap.Strings("args", command.Args))
	return s.process, nil
}

// Simulate runs BeforeStart and then replays every event of rec.
func (s *Simulator) Simulate(rec *Recording) error {
	if rec == nil {
		return fmt.Errorf("recording is nil")
	}
	if s.effects.BeforeStart != nil {
		if err := s.effects.BeforeStart(); err != nil {
			return fmt.Errorf("before start: %w", err)
		}
	}
	return s.SimulateEvents(rec.Events)
}

// SimulateEvents replays events in order. The first failing event stops the replay.
func (s *Simulator) SimulateEvents(events []Event) error {
	for i, ev := range events {
		if err := s.simulateEvent(ev); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}

// SimulatedEvents returns the events replayed so far.
func (s *Simulator) SimulatedEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

func (s *Simulator) simulateEvent(ev Event) error {
	if s.timing && ev.After > 0 {
		time.Sleep(ev.delay())
	}
	// let consumers react to the previous event
	runtime.Gosched()

	kind, err := ev.Kind()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()

	switch kind {
	case KindStdout:
		return s.simulateStdout(ev.Stdout.Data)
	case KindStderr:
		s.mu.Lock()
		s.stderr.WriteString(ev.Stderr.Data)
		s.mu.Unlock()
		s.process.stderr.Append([]byte(ev.Stderr.Data))
	case KindError:
		s.process.fail(ev.Error.Error)
	case KindExit:
		if ev.Exit.Code == 0 && s.effects.BeforeSuccess != nil {
			s.mu.Lock()
			stdout, stderr := s.stdout.String(), s.stderr.String()
			s.mu.Unlock()
			if err := s.effects.BeforeSuccess(stdout, stderr); err != nil {
				return fmt.Errorf("before success: %w", err)
			}
		}
		s.process.exit(ev.Exit.Code)
	case KindCustom:
		return s.runCustom(ev.Custom)
	}
	return nil
}

func (s *Simulator) simulateStdout(data string) error {
	matched := s.matchRules(data)
	for _, m := range matched {
		s.logger.Debug("running side effect",
			zap.String("pattern", m.Pattern.String()),
			zap.Int("offset", m.offset),
			zap.Bool("whole_output", m.WholeOutput))
		if m.Action == nil {
			continue
		}
		if err := m.Action(); err != nil {
			return fmt.Errorf("side effect %q: %w", m.Pattern.String(), err)
		}
	}
	s.process.stdout.Append([]byte(data))
	return nil
}

// matchRules appends data to the stdout buffer and returns the rules it triggers,
// ordered by offset in the whole output and then by declaration order.
// Whole-output rules that match are consumed.
func (s *Simulator) matchRules(data string) []matchedRule {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.stdout.Len()
	s.stdout.WriteString(data)
	all := s.stdout.String()

	var matched []matchedRule
	for _, r := range s.chunkRules {
		if loc := r.Pattern.FindStringIndex(data); loc != nil {
			matched = append(matched, matchedRule{declaredRule: r, offset: previous + loc[0]})
		}
	}

	remaining := s.wholeRules[:0]
	for _, r := range s.wholeRules {
		if loc := r.Pattern.FindStringIndex(all); loc != nil {
			matched = append(matched, matchedRule{declaredRule: r, offset: loc[0]})
			continue
		}
		remaining = append(remaining, r)
	}
	s.wholeRules = remaining

	slices.SortStableFunc(matched, func(a, b matchedRule) int {
		if c := cmp.Compare(a.offset, b.offset); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})
	return matched
}

func (s *Simulator) runCustom(ev *CustomEvent) error {
	run := ev.Run
	if run == nil && ev.Action != "" {
		run = s.actions[ev.Action]
	}
	if run == nil {
		return fmt.Errorf("custom event has no action %q", ev.Action)
	}
	return run()
}
