package simulator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Recording is a captured process execution, replayed event by event.
type Recording struct {
	Events []Event `json:"events"`
}

// Event is one step of a recording. Exactly one of the kind fields is set.
type Event struct {
	// After is the delay in milliseconds before the event, honoured only WithTiming.
	After int `json:"after,omitempty"`

	Stdout *DataEvent   `json:"stdout,omitempty"`
	Stderr *DataEvent   `json:"stderr,omitempty"`
	Error  *ErrorEvent  `json:"error,omitempty"`
	Exit   *ExitEvent   `json:"exit,omitempty"`
	Custom *CustomEvent `json:"custom,omitempty"`
}

type DataEvent struct {
	Data string `json:"data"`
}

type ErrorEvent struct {
	Error string `json:"error"`
}

type ExitEvent struct {
	Code int `json:"code"`
}

// CustomEvent runs an action. Recordings loaded from JSON refer to actions by name,
// resolved through WithActions.
type CustomEvent struct {
	Action string       `json:"action,omitempty"`
	Run    func() error `json:"-"`
}

// Event kinds.
const (
	KindStdout = "stdout"
	KindStderr = "stderr"
	KindError  = "error"
	KindExit   = "exit"
	KindCustom = "custom"
)

// Kind returns the kind of the event, or an error if none or several kinds are set.
func (e Event) Kind() (string, error) {
	var kinds []string
	if e.Stdout != nil {
		kinds = append(kinds, KindStdout)
	}
	if e.Stderr != nil {
		kinds = append(kinds, KindStderr)
	}
	if e.Error != nil {
		kinds = append(kinds, KindError)
	}
	if e.Exit != nil {
		kinds = append(kinds, KindExit)
	}
	if e.Custom != nil {
		kinds = append(kinds, KindCustom)
	}
	if len(kinds) != 1 {
		return "", fmt.Errorf("unknown event to simulate: %d kinds set %v", len(kinds), kinds)
	}
	return kinds[0], nil
}

func (e Event) delay() time.Duration {
	return time.Duration(e.After) * time.Millisecond
}

// Stdout builds a stdout event.
func Stdout(data string) Event { return Event{Stdout: &DataEvent{Data: data}} }

// Stderr builds a stderr event.
func Stderr(data string) Event { return Event{Stderr: &DataEvent{Data: data}} }

// Error builds an error event.
func Error(msg string) Event { return Event{Error: &ErrorEvent{Error: msg}} }

// Exit builds an exit event.
func Exit(code int) Event { return Event{Exit: &ExitEvent{Code: code}} }

// Custom builds an event running fn.
func Custom(fn func() error) Event { return Event{Custom: &CustomEvent{Run: fn}} }

// ParseRecording decodes a JSON recording. Unknown event kinds are rejected.
func ParseRecording(data []byte) (*Recording, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var rec Recording
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode recording: %w", err)
	}
	for i, ev := range rec.Events {
		if _, err := ev.Kind(); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return &rec, nil
}

// LoadRecording reads a JSON recording from path.
func LoadRecording(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return ParseRecording(data)
}
