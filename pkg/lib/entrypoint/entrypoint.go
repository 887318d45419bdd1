// Package entrypoint applies the error policy at the outermost boundary of a process.
//
// Non-fatal errors are logged and swallowed. Fatal errors are returned to the caller in
// the host process, and end a worker process with exit code 1 so the user sees a clean
// failure instead of a crash.
package entrypoint

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
)

// Handler runs entry points of one process.
type Handler struct {
	isWorker bool
	logger   *logger.Logger
	exit     func(code int)
}

// Option configures a Handler.
type Option func(*Handler)

// WithExit replaces os.Exit.
func WithExit(exit func(code int)) Option {
	return func(h *Handler) { h.exit = exit }
}

// NewHandler creates a Handler. isWorker marks a subordinate process, such as a CLI
// invocation talking to the host daemon.
func NewHandler(isWorker bool, log *logger.Logger, opts ...Option) *Handler {
	if log == nil {
		log = logger.Default()
	}
	h := &Handler{isWorker: isWorker, logger: log, exit: os.Exit}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run runs fn and applies the error policy to its error or panic.
//
// The stack is logged for non-fatal errors and in workers. A fatal error in the host
// is returned without it, since the caller reports it again.
func (h *Handler) Run(taskName string, fn func() error, fatal bool) error {
	err := call(fn)
	if err == nil {
		return nil
	}

	fields := []zap.Field{zap.String("task", taskName), zap.Bool("fatal", fatal), zap.Error(err)}
	if !fatal || h.isWorker {
		fields = append(fields, zap.Stack("stack"))
	}
	h.logger.Error(taskName+" failed", fields...)

	if !fatal {
		return nil
	}
	if h.isWorker {
		_ = h.logger.Sync()
		h.exit(1)
	}
	return err
}

// RunApp runs the whole application; its errors are fatal.
func (h *Handler) RunApp(appName, version string, fn func() error) error {
	h.logger.Debug("starting application",
		zap.String("app", appName),
		zap.String("version", version),
		zap.Bool("worker", h.isWorker))
	return h.Run(appName, fn, true)
}

func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
