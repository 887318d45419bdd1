// Package fakepackager serves the HTTP surface of the packager: the status probe
// and bundle downloads. It stands in for the real bundler in tests and manual runs.
package fakepackager

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
)

// StatusRunning is the body of /status once the packager is ready.
const StatusRunning = "packager-status:running"

// ReadyMarker is printed by cmd/fake-packager when it starts serving.
const ReadyMarker = "Loading dependency graph, done."

// Server is a scriptable packager.
type Server struct {
	logger *logger.Logger

	mu      sync.Mutex
	running bool
	body    string
	bundles map[string]int
}

// New creates a server that is not running yet.
func New(log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		logger:  log.WithComponent("fake-packager"),
		bundles: make(map[string]int),
	}
}

// SetRunning switches /status between the running sentinel and 503.
func (s *Server) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// SetStatusBody overrides the /status body, e.g. to return something that is not the sentinel.
func (s *Server) SetStatusBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
}

// BundleRequests returns how many bundles were requested for platform.
func (s *Server) BundleRequests(platform string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bundles[platform]
}

// Router returns the gin engine serving the packager endpoints.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(s.logger))

	router.GET("/status", s.handleStatus)
	// bundle names are single path segments like index.android.bundle
	router.NoRoute(s.handleBundle)

	return router
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.Lock()
	running, body := s.running, s.body
	s.mu.Unlock()

	if body != "" {
		c.String(http.StatusOK, body)
		return
	}
	if !running {
		c.String(http.StatusServiceUnavailable, "")
		return
	}
	c.String(http.StatusOK, StatusRunning)
}

func (s *Server) handleBundle(c *gin.Context) {
	platform, ok := bundlePlatform(c.Request.URL.Path)
	if c.Request.Method != http.MethodGet || !ok {
		c.String(http.StatusNotFound, "Not Found")
		return
	}

	s.mu.Lock()
	running := s.running
	if running {
		s.bundles[platform]++
	}
	s.mu.Unlock()

	if !running {
		c.String(http.StatusServiceUnavailable, "")
		return
	}
	c.Data(http.StatusOK, "application/javascript", []byte("__d(function(){},0,[],\"index."+platform+".js\");\n"))
}

// bundlePlatform extracts the platform from /index.<platform>.bundle.
func bundlePlatform(path string) (string, bool) {
	name, ok := strings.CutPrefix(path, "/index.")
	if !ok {
		return "", false
	}
	platform, ok := strings.CutSuffix(name, ".bundle")
	if !ok || platform == "" || strings.Contains(platform, "/") {
		return "", false
	}
	return platform, true
}

// RequestLogger logs every request at debug level.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := uuid.New().String()
		c.Header("X-Request-ID", requestID)

		c.Next()

		log.Debug("Request completed",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestID),
		)
	}
}
