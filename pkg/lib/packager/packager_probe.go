package packager

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// IsRunning asks the status endpoint once. Only the body decides, whatever the HTTP
// status. Any transport failure counts as not running.
func (m *Manager) IsRunning(ctx context.Context) bool {
	_, body, err := m.get(ctx, "/status")
	if err != nil {
		m.logger.Debug("status probe failed", zap.Error(err))
		return false
	}
	return body == statusSentinel
}

// PrewarmCache requests the bundle for platform so the first app load is fast.
// Failures are ignored: the project may not use an index.* entry point.
func (m *Manager) PrewarmCache(ctx context.Context, platform string) {
	path := fmt.Sprintf("/index.%s.bundle", platform)
	m.logger.Debug("About to get: "+path, zap.String("platform", platform))
	code, _, err := m.get(ctx, path)
	if err == nil && code != http.StatusOK {
		err = fmt.Errorf("GET %s: %s", path, http.StatusText(code))
	}
	if err != nil {
		m.logger.Debug("bundle prewarm failed", zap.String("platform", platform), zap.Error(err))
		return
	}
	m.logger.Info("The Bundle Cache was prewarmed.", zap.String("platform", platform))
}

func (m *Manager) get(ctx context.Context, path string) (int, string, error) {
	url := "http://" + m.cfg.address() + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(body), nil
}
