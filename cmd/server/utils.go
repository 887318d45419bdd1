package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/packager"
)

func stringArg(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	v, ok := args[i].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("argument %d must be a non-empty string, got %v", i, args[i])
	}
	return v, nil
}

func statusFields(snap packager.Snapshot) []zap.Field {
	fields := []zap.Field{
		zap.Stringer("state", snap.State),
		zap.Stringer("ownership", snap.Ownership),
		zap.String("address", snap.Address),
	}
	if snap.PID > 0 {
		fields = append(fields, zap.Int("pid", snap.PID), zap.Time("started_at", snap.StartedAt))
	}
	if snap.Process.ExitCode != nil {
		fields = append(fields, zap.Int("exit_code", *snap.Process.ExitCode))
	}
	return fields
}

func (s *PackagerServer) logStatus(op string) {
	s.logger.Debug("packager status after "+op, statusFields(s.manager.Status())...)
}
