package simulator

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/runner"
)

func readAll(ch <-chan []byte) string {
	var out []byte
	for b := range ch {
		out = append(out, b...)
	}
	return string(out)
}

func TestSimulate_WholeOutputRuleFiresOnce(t *testing.T) {
	fired := 0
	sim := New(SideEffects{Rules: []Rule{
		WholeOutputRule(regexp.MustCompile(`ready`), func() error { fired++; return nil }),
	}})

	err := sim.SimulateEvents([]Event{Stdout("packager ready\n"), Stdout("still serving\n")})

	require.NoError(t, err)
	assert.Equal(t, 1, fired, "the cumulative buffer still matches after the second chunk")
}

func TestSimulate_ChunkRuleFiresPerChunk(t *testing.T) {
	fired := 0
	sim := New(SideEffects{Rules: []Rule{
		ChunkRule(regexp.MustCompile(`bundle`), func() error { fired++; return nil }),
	}})

	err := sim.SimulateEvents([]Event{Stdout("bundle 1\n"), Stdout("idle\n"), Stdout("bundle 2\n")})

	require.NoError(t, err)
	assert.Equal(t, 2, fired)
}

func TestSimulate_RulesRunInOffsetOrder(t *testing.T) {
	var order []string
	record := func(name string) func() error {
		return func() error { order = append(order, name); return nil }
	}
	// "01234567": the first rule matches at offset 5, the second at offset 2
	sim := New(SideEffects{Rules: []Rule{
		ChunkRule(regexp.MustCompile(`567`), record("at-5")),
		WholeOutputRule(regexp.MustCompile(`234`), record("at-2")),
	}})

	require.NoError(t, sim.SimulateEvents([]Event{Stdout("01234567")}))
	assert.Equal(t, []string{"at-2", "at-5"}, order)
}

func TestSimulate_ChunkOffsetIsRelativeToWholeOutput(t *testing.T) {
	var order []string
	record := func(name string) func() error {
		return func() error { order = append(order, name); return nil }
	}
	// the whole-output rule first matches once "done" arrives, at offset 0;
	// the chunk rule matches "done" in the second chunk at offset 6.
	sim := New(SideEffects{Rules: []Rule{
		ChunkRule(regexp.MustCompile(`done`), record("chunk")),
		WholeOutputRule(regexp.MustCompile(`(?s)start.*done`), record("whole")),
	}})

	require.NoError(t, sim.SimulateEvents([]Event{Stdout("start "), Stdout("done")}))
	assert.Equal(t, []string{"whole", "chunk"}, order)
}

func TestSimulate_TiesKeepDeclarationOrder(t *testing.T) {
	var order []string
	record := func(name string) func() error {
		return func() error { order = append(order, name); return nil }
	}
	sim := New(SideEffects{Rules: []Rule{
		WholeOutputRule(regexp.MustCompile(`ready`), record("first")),
		ChunkRule(regexp.MustCompile(`ready`), record("second")),
		WholeOutputRule(regexp.MustCompile(`rea`), record("third")),
	}})

	require.NoError(t, sim.SimulateEvents([]Event{Stdout("ready")}))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestSimulate_ActionsSettleBeforeChunkIsEmitted(t *testing.T) {
	var sim *Simulator
	emittedBeforeAction := false
	sim = New(SideEffects{Rules: []Rule{
		ChunkRule(regexp.MustCompile(`marker`), func() error {
			emittedBeforeAction = sim.Process().stdout.Len() > 0
			return nil
		}),
	}})

	require.NoError(t, sim.SimulateEvents([]Event{Stdout("marker")}))
	assert.False(t, emittedBeforeAction)
	assert.Equal(t, 6, sim.Process().stdout.Len())
}

func TestSimulate_BeforeSuccessOnlyOnCleanExit(t *testing.T) {
	var gotStdout, gotStderr string
	calls := 0
	effects := SideEffects{BeforeSuccess: func(stdout, stderr string) error {
		calls++
		gotStdout, gotStderr = stdout, stderr
		return nil
	}}

	sim := New(effects)
	require.NoError(t, sim.SimulateEvents([]Event{Stdout("a"), Stderr("b"), Stdout("c"), Exit(0)}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "ac", gotStdout)
	assert.Equal(t, "b", gotStderr)

	code, err := sim.Process().Exited().Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	failing := New(effects)
	require.NoError(t, failing.SimulateEvents([]Event{Stdout("a"), Exit(1)}))
	assert.Equal(t, 1, calls, "hook skipped for non-zero exit")
	code, _ = failing.Process().Exited().Wait()
	assert.Equal(t, 1, code)
}

func TestSimulate_StreamsAndSignals(t *testing.T) {
	sim := New(SideEffects{})
	p := sim.Process()

	require.NoError(t, sim.SimulateEvents([]Event{Stdout("out"), Stderr("err"), Error("spawn ENOENT"), Exit(2)}))

	assert.Equal(t, "out", readAll(p.Stdout(4)))
	assert.Equal(t, "err", readAll(p.Stderr(4)))
	procErr, _ := p.Failed().Wait()
	require.Error(t, procErr)
	assert.Equal(t, "spawn ENOENT", procErr.Error())
	assert.NoError(t, p.Terminate())
}

func TestSimulate_UnknownEventKind(t *testing.T) {
	sim := New(SideEffects{})

	err := sim.SimulateEvents([]Event{Stdout("a"), {}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event")
	assert.Len(t, sim.SimulatedEvents(), 1)
}

func TestSimulate_ActionErrorAbortsReplay(t *testing.T) {
	boom := errors.New("boom")
	sim := New(SideEffects{Rules: []Rule{
		ChunkRule(regexp.MustCompile(`x`), func() error { return boom }),
	}})

	err := sim.SimulateEvents([]Event{Stdout("x"), Stdout("never")})

	assert.ErrorIs(t, err, boom)
	assert.Len(t, sim.SimulatedEvents(), 1)
	assert.Equal(t, 0, sim.Process().stdout.Len(), "chunk not emitted when its side effect failed")
}

func TestSimulate_BeforeStartRunsFirst(t *testing.T) {
	var order []string
	sim := New(SideEffects{
		BeforeStart: func() error { order = append(order, "before-start"); return nil },
	})

	rec := &Recording{Events: []Event{Custom(func() error { order = append(order, "custom"); return nil })}}
	require.NoError(t, sim.Simulate(rec))
	assert.Equal(t, []string{"before-start", "custom"}, order)
}

func TestLoadRecording(t *testing.T) {
	rec, err := LoadRecording("testdata/packager_start.json")
	require.NoError(t, err)
	require.Len(t, rec.Events, 6)

	kind, err := rec.Events[3].Kind()
	require.NoError(t, err)
	assert.Equal(t, KindStdout, kind)
	assert.Equal(t, 250, rec.Events[3].After)
	assert.Equal(t, "bundle-requested", rec.Events[4].Custom.Action)

	_, err = LoadRecording("testdata/unknown_event.json")
	assert.Error(t, err)

	_, err = LoadRecording("testdata/missing.json")
	assert.Error(t, err)
}

func TestSimulate_RecordingWithNamedActionsAndTiming(t *testing.T) {
	rec, err := LoadRecording("testdata/packager_start.json")
	require.NoError(t, err)

	requested := false
	sim := New(SideEffects{}, WithTiming(), WithPID(4242), WithLogger(logger.NewNop()),
		WithActions(map[string]func() error{"bundle-requested": func() error { requested = true; return nil }}))

	start := time.Now()
	require.NoError(t, sim.Simulate(rec))
	assert.GreaterOrEqual(t, time.Since(start), 350*time.Millisecond)
	assert.True(t, requested)
	assert.Equal(t, 4242, sim.Process().PID())
	assert.Len(t, sim.SimulatedEvents(), 6)
}

func TestSimulate_DrivesSupervisor(t *testing.T) {
	rec, err := LoadRecording("testdata/packager_crash.json")
	require.NoError(t, err)

	sim := New(SideEffects{})
	sup := runner.NewSupervisor(logger.NewNop(),
		runner.WithSpawnFunc(sim.Spawn),
		runner.WithReadyPattern(regexp.MustCompile(`Loading dependency graph, done`)))

	res, err := sup.Spawn(lib.Command{Command: "npx", Args: []string{"react-native", "start"}}, nil)
	require.NoError(t, err)
	require.NoError(t, sim.Simulate(rec))

	select {
	case <-res.Startup.Done():
	case <-time.After(time.Second):
		t.Fatal("startup not settled")
	}
	_, err = res.Startup.Wait()
	assert.Error(t, err, "the process exited before printing the ready marker")

	_, err = res.Outcome.Wait()
	var exitErr *runner.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 11, exitErr.Code)
	assert.Equal(t, "Error: listen EADDRINUSE :::8081\n", readAll(res.Process.Stderr(4)))
}
