package main

import (
	"context"
	"fmt"
)

// Prewarm handles PREWARM_BUNDLE_CACHE. The first argument is the platform.
func (s *PackagerServer) Prewarm(ctx context.Context, args []any) error {
	platform, err := stringArg(args, 0)
	if err != nil {
		return fmt.Errorf("prewarm: %w", err)
	}
	s.manager.PrewarmCache(ctx, platform)
	return nil
}
