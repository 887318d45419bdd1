package fakepackager

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
)

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(w, req)
	return w
}

func TestStatus(t *testing.T) {
	s := New(logger.NewNop())

	w := serve(t, s, "/status")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.SetRunning(true)
	w = serve(t, s, "/status")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StatusRunning, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	s.SetStatusBody("packager-status:starting")
	w = serve(t, s, "/status")
	assert.Equal(t, "packager-status:starting", w.Body.String())
}

func TestBundle(t *testing.T) {
	s := New(logger.NewNop())
	s.SetRunning(true)

	w := serve(t, s, "/index.android.bundle")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "index.android.js")
	assert.Equal(t, 1, s.BundleRequests("android"))
	assert.Equal(t, 0, s.BundleRequests("ios"))

	w = serve(t, s, "/main.ios.bundle")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBundleWhileNotRunning(t *testing.T) {
	s := New(logger.NewNop())

	w := serve(t, s, "/index.ios.bundle")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 0, s.BundleRequests("ios"))
}

func TestBundlePlatform(t *testing.T) {
	tests := []struct {
		path     string
		platform string
		ok       bool
	}{
		{"/index.android.bundle", "android", true},
		{"/index.ios.bundle", "ios", true},
		{"/index..bundle", "", false},
		{"/index.android.map", "", false},
		{"/foo/index.ios.bundle", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			platform, ok := bundlePlatform(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.platform, platform)
		})
	}
}
