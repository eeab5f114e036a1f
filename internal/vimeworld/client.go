// Package vimeworld contains clients for the VimeWorld user API and the
// VimeTop player-directory API.
package vimeworld

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vimestats/internal/domain"
	"github.com/vimestats/internal/metrics"
)

// maxBodyBytes caps how much of an upstream body is read
const maxBodyBytes = 8 << 20

// StatusError is returned when an upstream API answers with a non-2xx status
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// Unwrap lets errors.Is match domain.ErrUpstreamStatus
func (e *StatusError) Unwrap() error {
	return domain.ErrUpstreamStatus
}

// ProxyURL routes target through a CORS proxy that takes the escaped target
// URL as its query string. An empty proxy returns target unchanged.
func ProxyURL(proxy, target string) string {
	if proxy == "" {
		return target
	}
	return proxy + url.QueryEscape(target)
}

// transport performs GET requests and records upstream metrics
type transport struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func newTransport(timeout time.Duration, logger *slog.Logger) transport {
	return transport{
		// zero timeout means the request may wait indefinitely
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// get fetches rawURL and returns the body of a 2xx response
func (t transport) get(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	t.logger.Debug("upstream request", "endpoint", endpoint, "url", rawURL)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "status").Inc()
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("reading %s response: %w", endpoint, err)
	}

	metrics.UpstreamRequests.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}
