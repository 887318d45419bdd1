package messaging

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/errors"
	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
)

const defaultDialTimeout = 5 * time.Second

// Sender delivers messages to the listener at a socket path.
type Sender struct {
	path        string
	dialTimeout time.Duration
	logger      *logger.Logger
}

// NewSender creates a Sender for the socket at path.
func NewSender(path string, log *logger.Logger) *Sender {
	if log == nil {
		log = logger.Default()
	}
	return &Sender{path: path, dialTimeout: defaultDialTimeout, logger: log.WithComponent("sender")}
}

// Path returns the socket path messages are sent to.
func (s *Sender) Path() string {
	return s.path
}

// SendMessage writes one frame on a new connection and returns once it is fully written.
// Any failure is a *errors.ConnectionError naming the message.
func (s *Sender) SendMessage(ctx context.Context, message Message, args ...any) error {
	if err := s.send(ctx, Frame{Message: message, Args: args}); err != nil {
		s.logger.Debug("failed to send message", zap.String("message", string(message)), zap.Error(err))
		return errors.NewConnectionError(string(message), err)
	}
	s.logger.Debug("message sent", zap.String("message", string(message)))
	return nil
}

func (s *Sender) send(ctx context.Context, frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	d := net.Dialer{Timeout: s.dialTimeout}
	conn, err := d.DialContext(ctx, "unix", s.path)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	if _, err := conn.Write(data); err != nil {
		return err
	}
	// the listener reads until EOF
	if uc, ok := conn.(*net.UnixConn); ok {
		return uc.CloseWrite()
	}
	return nil
}
