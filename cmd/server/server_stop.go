package main

import (
	"context"
)

// Stop handles STOP_PACKAGER.
func (s *PackagerServer) Stop(ctx context.Context, _ []any) error {
	s.logger.Info("stop requested")
	err := s.manager.Stop(ctx)
	s.logStatus("stop")
	return err
}
