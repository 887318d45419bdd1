package lib

import "time"

// ProcessState mirrors high-level states of a supervised OS process.
type ProcessState int

const (
	ProcessStateUnspecified ProcessState = iota
	ProcessStateRunning
	ProcessStateStopped
)

func (s ProcessState) String() string {
	switch s {
	case ProcessStateRunning:
		return "Running"
	case ProcessStateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// ServiceState is the lifecycle state of the packager service as seen by one workspace.
type ServiceState int

const (
	ServiceStateStopped ServiceState = iota
	ServiceStateStarting
	ServiceStateRunning
	ServiceStateStopping
)

func (s ServiceState) String() string {
	switch s {
	case ServiceStateStopped:
		return "Stopped"
	case ServiceStateStarting:
		return "Starting"
	case ServiceStateRunning:
		return "Running"
	case ServiceStateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// Ownership tells whether a running packager was spawned by this process.
type Ownership int

const (
	OwnershipNone Ownership = iota
	OwnershipOwned
	OwnershipExternal
)

func (o Ownership) String() string {
	switch o {
	case OwnershipOwned:
		return "owned"
	case OwnershipExternal:
		return "external"
	default:
		return "none"
	}
}

// Command captures command metadata used to start a process.
type Command struct {
	Command string
	Args    []string
	Dir     string
}

// ProcessStatus captures runtime state and timestamps.
type ProcessStatus struct {
	State     ProcessState
	ExitCode  *int
	StartTime time.Time
	EndTime   *time.Time
}
