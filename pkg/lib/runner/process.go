package runner

import "fmt"

// Process is the handle of a spawned process.
//
// Output is exposed as replaying chunk subscriptions and the end of the process as
// signals, so a real OS process and a scripted one look the same to consumers.
type Process interface {
	// PID returns the OS process id, or 0 for processes that have none.
	PID() int

	// Stdout subscribes to standard output from its first chunk. The channel is
	// closed once the process exited and every chunk was delivered.
	Stdout(capacity int) <-chan []byte

	// Stderr is Stdout for standard error.
	Stderr(capacity int) <-chan []byte

	// Exited resolves with the exit code when the process ends.
	Exited() *Future[int]

	// Failed resolves with the error the process reported, if any.
	Failed() *Future[error]

	// Terminate ends the process and returns once it is gone.
	// A process that is already gone is not an error.
	Terminate() error
}

// ExitError rejects a spawn outcome when the process exits with a non-zero code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process exited with code %d", e.Code)
}
