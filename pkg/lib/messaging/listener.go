package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/errors"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
)

const readTimeout = 10 * time.Second

// HandlerFunc handles one message. Its error is logged, the sender never sees it.
type HandlerFunc func(ctx context.Context, args []any) error

// Credentials identify the process on the other end of a connection.
type Credentials struct {
	PID int32
	UID uint32
	GID uint32
}

// ErrPeerCredentialsUnsupported is returned where the OS cannot identify socket peers.
var ErrPeerCredentialsUnsupported = errors.New("peer credentials are not supported")

// PeerCheck decides whether a connecting process may send messages.
type PeerCheck func(Credentials) error

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithPeerCheck drops connections from peers that check rejects.
func WithPeerCheck(check PeerCheck) ListenerOption {
	return func(l *Listener) { l.peerCheck = check }
}

// Listener accepts frames on a unix socket and dispatches them to registered handlers.
type Listener struct {
	path      string
	ln        net.Listener
	logger    *logger.Logger
	peerCheck PeerCheck

	mu       sync.RWMutex
	handlers map[Message]HandlerFunc

	closeOnce sync.Once
	closed    chan struct{}
	conns     sync.WaitGroup
}

// Listen binds the socket at path. A stale socket file left by a dead listener is removed;
// a socket that still accepts connections is an error.
func Listen(path string, log *logger.Logger, opts ...ListenerOption) (*Listener, error) {
	if log == nil {
		log = logger.Default()
	}
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("restrict %s: %w", path, err)
	}

	l := &Listener{
		path:     path,
		ln:       ln,
		logger:   log.WithComponent("listener"),
		handlers: make(map[Message]HandlerFunc),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if conn, err := net.DialTimeout("unix", path, time.Second); err == nil {
		_ = conn.Close()
		return fmt.Errorf("%s is in use by another listener", path)
	}
	return os.Remove(path)
}

// Path returns the socket path.
func (l *Listener) Path() string {
	return l.path
}

// Handle registers fn for message, replacing any previous handler.
func (l *Listener) Handle(message Message, fn HandlerFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[message] = fn
}

func (l *Listener) handler(message Message) (HandlerFunc, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn, ok := l.handlers[message]
	return fn, ok
}

// Serve accepts connections until ctx is done or Close is called.
// It returns after every in-flight handler finished.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-l.closed:
		}
	}()

	defer l.conns.Wait()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.closed:
				return nil
			default:
			}
			return fmt.Errorf("accept: %w", err)
		}

		l.conns.Add(1)
		go func() {
			defer l.conns.Done()
			l.handleConn(ctx, conn)
		}()
	}
}

// Close stops accepting connections and removes the socket file.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.ln.Close()
		if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	})
	return err
}

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	connID := lib.NewID()
	log := l.logger.WithFields(zap.String("conn_id", connID))

	if l.peerCheck != nil {
		creds, err := peerCredentials(conn)
		switch {
		case errors.Is(err, ErrPeerCredentialsUnsupported):
			// the socket file mode is the only protection here
			log.Debug("peer check skipped", zap.Error(err))
		case err != nil:
			log.Warn("rejected connection", zap.Error(err))
			return
		default:
			if err := l.peerCheck(creds); err != nil {
				log.Warn("rejected connection", zap.Error(err))
				return
			}
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	data, err := io.ReadAll(io.LimitReader(conn, maxFrameSize))
	if err != nil {
		log.Warn("failed to read frame", zap.Error(err))
		return
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Warn("dropping malformed frame", zap.Int("size", len(data)), zap.Error(err))
		return
	}

	fn, ok := l.handler(frame.Message)
	if !ok {
		log.Warn("no handler for message", zap.String("message", string(frame.Message)))
		return
	}

	log.Debug("handling message", zap.String("message", string(frame.Message)), zap.Int("args", len(frame.Args)))
	if err := fn(ctx, frame.Args); err != nil {
		log.Error("An error occurred while handling message: "+string(frame.Message), zap.Error(err))
	}
}
