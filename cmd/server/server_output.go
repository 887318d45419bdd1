package main

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/runner"
)

// forwardOwnedOutput logs the output of a newly spawned packager, once per process.
func (s *PackagerServer) forwardOwnedOutput() {
	p := s.manager.Process()
	if p == nil {
		return
	}
	s.mu.Lock()
	if s.forwarded == p {
		s.mu.Unlock()
		return
	}
	s.forwarded = p
	s.mu.Unlock()

	go s.forwardOutput(p)
}

func (s *PackagerServer) forwardOutput(p runner.Process) {
	log := s.logger.WithFields(zap.Int("pid", p.PID()))
	stdout := p.Stdout(16)
	stderr := p.Stderr(16)

	for {
		if stdout == nil && stderr == nil {
			return
		}

		select {
		case chunk, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			logLines(chunk, func(line string) { log.Info(line, zap.String("stream", "stdout")) })
		case chunk, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			logLines(chunk, func(line string) { log.Warn(line, zap.String("stream", "stderr")) })
		}
	}
}

func logLines(chunk []byte, emit func(string)) {
	for _, line := range bytes.Split(bytes.TrimRight(chunk, "\n"), []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		emit(string(line))
	}
}
