package runner

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/output_storage"
)

func readAll(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	var out []byte
	for b := range ch {
		out = append(out, b...)
	}
	return string(out)
}

func waitFuture[T any](t *testing.T, f *Future[T], timeout time.Duration) (T, error) {
	t.Helper()
	select {
	case <-f.Done():
		return f.Wait()
	case <-time.After(timeout):
		t.Fatalf("future not settled within %s", timeout)
	}
	var zero T
	return zero, nil
}

func shell(script string) lib.Command {
	return lib.Command{Command: "sh", Args: []string{"-c", script}}
}

func TestSpawnAndOutput(t *testing.T) {
	s := NewSupervisor(logger.NewNop())

	res, err := s.Spawn(shell("echo out; echo err 1>&2"), nil)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if res.Process.PID() <= 0 {
		t.Fatalf("expected a pid, got %d", res.Process.PID())
	}

	code, err := waitFuture(t, res.Outcome, 2*time.Second)
	if err != nil {
		t.Fatalf("expected clean outcome, got %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}

	if got := readAll(t, res.Process.Stdout(5)); got != "out\n" {
		t.Fatalf("stdout: got %q", got)
	}
	if got := readAll(t, res.Process.Stderr(5)); got != "err\n" {
		t.Fatalf("stderr: got %q", got)
	}

	st := Status(res.Process)
	if st.State != lib.ProcessStateStopped {
		t.Fatalf("expected state Stopped, got %v", st.State)
	}
	if st.ExitCode == nil || *st.ExitCode != 0 || st.EndTime == nil {
		t.Fatalf("expected exit code 0 and end time, got %+v", st)
	}
}

func TestSpawnPassesEnvironment(t *testing.T) {
	s := NewSupervisor(logger.NewNop())

	res, err := s.Spawn(shell(`printf %s "$REACT_DEBUGGER"`), []string{"REACT_DEBUGGER=echo hi"})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if _, err := waitFuture(t, res.Outcome, 2*time.Second); err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if got := readAll(t, res.Process.Stdout(5)); got != "echo hi" {
		t.Fatalf("stdout: got %q", got)
	}
}

func TestSpawnNonZeroExitRejectsOutcome(t *testing.T) {
	s := NewSupervisor(logger.NewNop())

	res, err := s.Spawn(shell("exit 3"), nil)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	_, err = waitFuture(t, res.Outcome, 2*time.Second)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 3 {
		t.Fatalf("expected code 3, got %d", exitErr.Code)
	}
}

func TestStartupWaitsForReadyPattern(t *testing.T) {
	s := NewSupervisor(logger.NewNop(), WithReadyPattern(regexp.MustCompile(`Loading dependency graph, done\.`)))

	res, err := s.Spawn(shell("echo Starting; sleep 0.2; echo 'Loading dependency graph, done.'; sleep 10"), nil)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	defer func() { _ = s.Terminate(res.Process) }()

	if res.Startup.Settled() {
		t.Fatalf("startup settled before the ready marker was printed")
	}
	if _, err := waitFuture(t, res.Startup, 3*time.Second); err != nil {
		t.Fatalf("startup rejected: %v", err)
	}
}

func TestStartupRejectedWhenProcessExitsFirst(t *testing.T) {
	s := NewSupervisor(logger.NewNop(), WithReadyPattern(regexp.MustCompile(`ready`)))

	res, err := s.Spawn(shell("echo booting; exit 1"), nil)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if _, err := waitFuture(t, res.Startup, 2*time.Second); err == nil {
		t.Fatalf("expected startup to be rejected")
	}
}

func TestTerminateKillsProcessGroup(t *testing.T) {
	s := NewSupervisor(logger.NewNop())

	res, err := s.Spawn(shell("sleep 10 & sleep 10"), nil)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if st := Status(res.Process); st.State != lib.ProcessStateRunning {
		t.Fatalf("expected Running, got %v", st.State)
	}

	if err := s.Terminate(res.Process); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}

	st := Status(res.Process)
	if st.State != lib.ProcessStateStopped || st.EndTime == nil {
		t.Fatalf("expected Stopped with end time, got %+v", st)
	}
	// SIGTERM is reported as 128+15
	if st.ExitCode == nil || *st.ExitCode != 143 {
		t.Fatalf("expected exit code 143, got %v", st.ExitCode)
	}
}

func TestTerminateEscalatesToSigkill(t *testing.T) {
	s := NewSupervisor(logger.NewNop(), WithTerminateGrace(100*time.Millisecond))

	res, err := s.Spawn(shell("trap '' TERM; echo trapped; while true; do sleep 0.05; done"), nil)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	// wait until the trap is installed
	stdout := res.Process.Stdout(1)
	select {
	case <-stdout:
	case <-time.After(2 * time.Second):
		t.Fatalf("process did not start")
	}

	start := time.Now()
	if err := s.Terminate(res.Process); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("expected SIGKILL after the grace period, returned after %s", elapsed)
	}
	st := Status(res.Process)
	if st.ExitCode == nil || *st.ExitCode != 137 {
		t.Fatalf("expected exit code 137, got %v", st.ExitCode)
	}
}

func TestTerminateAlreadyExitedIsNoop(t *testing.T) {
	s := NewSupervisor(logger.NewNop())

	res, err := s.Spawn(shell("true"), nil)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if _, err := waitFuture(t, res.Outcome, 2*time.Second); err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if err := s.Terminate(res.Process); err != nil {
		t.Fatalf("expected no error terminating an exited process, got %v", err)
	}
}

func TestSpawnInvalidCommand(t *testing.T) {
	s := NewSupervisor(logger.NewNop())

	if _, err := s.Spawn(lib.Command{}, nil); err == nil {
		t.Fatalf("expected error spawning an empty command")
	}
	if _, err := s.Spawn(lib.Command{Command: "/nonexistent/packager"}, nil); err == nil {
		t.Fatalf("expected error spawning a missing binary")
	}
}

type stubProcess struct {
	stdout *output_storage.OutputStorage
	exited *Future[int]
	failed *Future[error]
}

func newStubProcess() *stubProcess {
	return &stubProcess{
		stdout: output_storage.NewOutputStorage(),
		exited: NewFuture[int](),
		failed: NewFuture[error](),
	}
}

func (p *stubProcess) PID() int                          { return 0 }
func (p *stubProcess) Stdout(capacity int) <-chan []byte { return p.stdout.Subscribe(capacity) }
func (p *stubProcess) Stderr(capacity int) <-chan []byte { return (*output_storage.OutputStorage)(nil).Subscribe(capacity) }
func (p *stubProcess) Exited() *Future[int]              { return p.exited }
func (p *stubProcess) Failed() *Future[error]            { return p.failed }
func (p *stubProcess) Terminate() error                  { return nil }

func TestSpawnFuncReplacesOSProcess(t *testing.T) {
	stub := newStubProcess()
	var gotCommand lib.Command
	s := NewSupervisor(logger.NewNop(), WithSpawnFunc(func(command lib.Command, env []string) (Process, error) {
		gotCommand = command
		return stub, nil
	}))

	res, err := s.Spawn(lib.Command{Command: "npx", Args: []string{"react-native", "start"}}, nil)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if gotCommand.Command != "npx" {
		t.Fatalf("spawn func got %q", gotCommand.Command)
	}

	stub.failed.Resolve(errors.New("spawn ENOENT"))
	if _, err := waitFuture(t, res.Outcome, time.Second); err == nil || err.Error() != "spawn ENOENT" {
		t.Fatalf("expected outcome rejected with the process error, got %v", err)
	}
}

func TestStartupSeesMarkerWrittenRightBeforeExit(t *testing.T) {
	stub := newStubProcess()
	s := NewSupervisor(logger.NewNop(),
		WithReadyPattern(regexp.MustCompile(`ready`)),
		WithSpawnFunc(func(lib.Command, []string) (Process, error) { return stub, nil }))

	res, err := s.Spawn(lib.Command{Command: "stub"}, nil)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	stub.stdout.Append([]byte("ready"))
	stub.stdout.Stop()
	stub.exited.Resolve(0)

	if _, err := waitFuture(t, res.Startup, time.Second); err != nil {
		t.Fatalf("startup rejected: %v", err)
	}
}
