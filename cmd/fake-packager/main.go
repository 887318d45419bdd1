// Command fake-packager serves the packager HTTP surface without bundling anything.
// It accepts the arguments of the real packager, so it can be configured as packager.command.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/fakepackager"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		host      string
		port      int
		readyWait time.Duration
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:           "fake-packager [start]",
		Short:         "Serve /status and bundle requests like the React Native packager",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.NewLogger(logger.LoggingConfig{Level: logLevel, Format: "text", OutputPath: "stderr"})
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd, host, port, readyWait, log)
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "address to bind")
	cmd.Flags().IntVar(&port, "port", 8081, "port to bind")
	cmd.Flags().DurationVar(&readyWait, "ready-after", time.Second, "delay before /status reports running")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}

func serve(ctx context.Context, cmd *cobra.Command, host string, port int, readyWait time.Duration, log *logger.Logger) error {
	gin.SetMode(gin.ReleaseMode)
	fake := fakepackager.New(log)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           fake.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "Running packager on port %d.\n", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-time.After(readyWait):
		fake.SetRunning(true)
		fmt.Fprintln(cmd.OutOrStdout(), fakepackager.ReadyMarker)
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.String("addr", server.Addr))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
