package runner

import (
	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
)

// StatusReporter is implemented by processes that track their own status.
type StatusReporter interface {
	Status() lib.ProcessStatus
}

// Status returns the status of p, or a zero status if p does not report one.
func Status(p Process) lib.ProcessStatus {
	if sr, ok := p.(StatusReporter); ok {
		return sr.Status()
	}
	return lib.ProcessStatus{}
}

// Status returns a copy of the current status.
func (p *osProcess) Status() lib.ProcessStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := lib.ProcessStatus{State: p.state, StartTime: p.start}
	if p.exitCode != nil {
		st.ExitCode = new(int)
		*st.ExitCode = *p.exitCode
	}
	if p.end != nil {
		t := *p.end
		st.EndTime = &t
	}
	return st
}
