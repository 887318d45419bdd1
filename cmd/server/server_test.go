package main

import (
	"context"
	"net"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/config"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/fakepackager"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/messaging"
)

func testConfig(t *testing.T, packagerURL string) *config.Config {
	t.Helper()
	u, err := url.Parse(packagerURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return &config.Config{
		Packager: config.PackagerConfig{
			Host:           host,
			Port:           port,
			Command:        "sh",
			Args:           []string{"-c", "sleep 30"},
			ReadyPattern:   fakepackager.ReadyMarker,
			ProbeTimeoutMs: 1000,
		},
		Retry:      config.RetryConfig{MaxAttempts: 3, DelayMs: 10},
		Supervisor: config.SupervisorConfig{TerminateGraceMs: 1000},
		Workspace:  config.WorkspaceConfig{Path: t.TempDir()},
	}
}

func startApp(t *testing.T, cfg *config.Config) (*ServerApp, *messaging.Sender) {
	t.Helper()
	app, err := NewServerApp(cfg, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, messaging.PipePath(cfg.Workspace.Path), app.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return app, messaging.NewSender(app.Addr(), logger.NewNop())
}

func TestServer_ControlsExternalPackager(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := fakepackager.New(logger.NewNop())
	fake.SetRunning(true)
	srv := httptest.NewServer(fake.Router())
	defer srv.Close()

	app, sender := startApp(t, testConfig(t, srv.URL))
	manager := app.server.manager
	ctx := context.Background()

	require.NoError(t, sender.SendMessage(ctx, messaging.StartPackager))
	require.Eventually(t, func() bool {
		return manager.State() == lib.ServiceStateRunning
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, lib.OwnershipExternal, manager.Ownership())

	require.NoError(t, sender.SendMessage(ctx, messaging.PrewarmBundleCache, "android"))
	require.Eventually(t, func() bool {
		return fake.BundleRequests("android") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// an external packager is never stopped from here
	require.NoError(t, sender.SendMessage(ctx, messaging.StopPackager))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, lib.ServiceStateRunning, manager.State())
	assert.Equal(t, lib.OwnershipExternal, manager.Ownership())
}

func TestServer_SpawnsAndStopsOwnedPackager(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := fakepackager.New(logger.NewNop())
	srv := httptest.NewServer(fake.Router())
	defer srv.Close()

	app, _ := startApp(t, testConfig(t, srv.URL))
	manager := app.server.manager
	ctx := context.Background()

	// nothing answers the probe: the packager is spawned and the start times out
	err := app.server.Start(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, "Could not start the packager.", err.Error())
	assert.Equal(t, lib.OwnershipOwned, manager.Ownership())
	p := manager.Process()
	require.NotNil(t, p)
	assert.Greater(t, p.PID(), 0)

	// once it answers, stop terminates the owned process
	fake.SetRunning(true)
	require.NoError(t, app.server.Stop(ctx, nil))
	assert.Equal(t, lib.ServiceStateStopped, manager.State())
	assert.Nil(t, manager.Process())
	select {
	case <-p.Exited().Done():
	case <-time.After(time.Second):
		t.Fatal("owned packager still running after stop")
	}
}

func TestServer_PrewarmNeedsPlatform(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	server, err := NewPackagerServer(cfg, logger.NewNop())
	require.NoError(t, err)

	assert.Error(t, server.Prewarm(context.Background(), nil))
	assert.Error(t, server.Prewarm(context.Background(), []any{42.0}))
	assert.NoError(t, server.Prewarm(context.Background(), []any{"ios"}))
}

func TestNewPackagerServer_InvalidReadyPattern(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Packager.ReadyPattern = "("

	_, err := NewPackagerServer(cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestLogLines(t *testing.T) {
	var lines []string
	logLines([]byte("Running packager on port 8081.\n\n  \nLoading dependency graph, done.\n"), func(l string) {
		lines = append(lines, l)
	})
	assert.Equal(t, []string{"Running packager on port 8081.", "Loading dependency graph, done."}, lines)
}

func TestServerApp_ShutdownTerminatesPackagerThatNeverAnswered(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := fakepackager.New(logger.NewNop())
	srv := httptest.NewServer(fake.Router())
	defer srv.Close()

	app, err := NewServerApp(testConfig(t, srv.URL), logger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Error(t, app.server.Start(ctx, nil))
	p := app.server.manager.Process()
	require.NotNil(t, p, "the timed out packager stays owned")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	select {
	case <-p.Exited().Done():
	case <-time.After(time.Second):
		t.Fatal("owned packager still running after shutdown")
	}
	code, _ := p.Exited().Wait()
	assert.Equal(t, 143, code)
	assert.Nil(t, app.server.manager.Process())
}
