package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/config"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/messaging"
)

// ServerApp is the host daemon: a control socket in front of a PackagerServer.
type ServerApp struct {
	listener *messaging.Listener
	server   *PackagerServer
	logger   *logger.Logger
}

// NewServerApp binds the control socket of the configured workspace and registers the handlers.
// Only processes of the same user may connect.
func NewServerApp(cfg *config.Config, log *logger.Logger) (*ServerApp, error) {
	server, err := NewPackagerServer(cfg, log)
	if err != nil {
		return nil, err
	}

	path := cfg.IPC.SocketPath
	if path == "" {
		path = messaging.PipePath(cfg.Workspace.Path)
	}
	listener, err := messaging.Listen(path, log, messaging.WithPeerCheck(sameUserOnly(log)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	server.Register(listener)

	return &ServerApp{listener: listener, server: server, logger: log.WithComponent("server")}, nil
}

// Addr returns the control socket path.
func (a *ServerApp) Addr() string { return a.listener.Path() }

// Run serves control messages until ctx is done, then terminates a packager it owns.
func (a *ServerApp) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.listener.Serve(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.listener.Close()
	})

	err := g.Wait()
	a.shutdown()
	return err
}

// shutdown terminates an owned packager even when it never answered the status probe.
func (a *ServerApp) shutdown() {
	if a.server.manager.Process() == nil {
		return
	}
	a.logger.Info("stopping owned packager before exit")
	if err := a.server.manager.Release(); err != nil {
		a.logger.Error("failed to stop packager", zap.Error(err))
	}
}
