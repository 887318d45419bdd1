package main

import (
	"context"
)

// Start handles START_PACKAGER.
func (s *PackagerServer) Start(ctx context.Context, _ []any) error {
	s.logger.Info("start requested")
	err := s.manager.Start(ctx)
	s.forwardOwnedOutput()
	s.logStatus("start")
	return err
}

// Restart handles RESTART_PACKAGER.
func (s *PackagerServer) Restart(ctx context.Context, _ []any) error {
	s.logger.Info("restart requested")
	err := s.manager.Restart(ctx)
	s.forwardOwnedOutput()
	s.logStatus("restart")
	return err
}
