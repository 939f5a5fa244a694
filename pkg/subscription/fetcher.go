package subscription

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/metrics"
	"github.com/rzbill/subrelay/pkg/types"
)

// Fixed query parameters of the backend conversion endpoint.
const (
	backendPath  = "/singbox"
	backendQuery = "&selectedRules=%5B%5D&customRules=%5B%5D&pin=false"
)

// BuildURL returns the backend conversion URL for cfg.
func BuildURL(cfg *types.Configuration) string {
	base := strings.TrimRight(cfg.BackendURL, "/")
	joined := strings.Join(cfg.SubscribeURLs, "\n")
	return base + backendPath + "?config=" + EscapeComponent(joined) + backendQuery
}

// EscapeComponent percent-encodes s the way ECMAScript's
// encodeURIComponent does: everything except A-Z a-z 0-9 and -_.!~*'()
// is encoded as UTF-8 bytes with upper-case hex.
func EscapeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// Fetcher calls subscription backends.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	logger  log.Logger
	metrics *metrics.Metrics
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the HTTP client. The Fetcher works on a copy, so the
// caller's client is never modified.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithTimeout bounds each backend call. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger log.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithFetcherMetrics records backend latency in m.
func WithFetcherMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{},
		logger: log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	client := *f.client
	if f.timeout > 0 {
		client.Timeout = f.timeout
	}
	f.client = &client
	f.logger = f.logger.WithComponent("fetcher")
	return f
}

// Fetch issues a single GET to url and returns the body of a 2xx response.
// Any other status, or no response at all, yields a *types.BackendError.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &types.BackendError{URL: url, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.RecordBackendRequest(0, time.Since(start))
		f.logger.Warn("Backend request failed", log.Str("url", url), log.Err(err))
		return nil, &types.BackendError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	f.metrics.RecordBackendRequest(resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warn("Backend returned non-success status",
			log.Str("url", url), log.Int("status", resp.StatusCode))
		return nil, &types.BackendError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.BackendError{URL: url, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	f.logger.Debug("Backend request succeeded",
		log.Str("url", url), log.Int("bytes", len(body)), log.Duration("duration", time.Since(start)))
	return body, nil
}
