package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/pipec/internal/ir"
)

// Default HTTP fetcher settings.
const (
	DefaultHTTPTimeout = 10 * time.Second
	DefaultRateLimit   = 10.0 // requests per second
	DefaultUserAgent   = "pipec"
)

// HTTPConfig configures an HTTP fetcher.
type HTTPConfig struct {
	// Timeout bounds each request. Zero means DefaultHTTPTimeout.
	Timeout time.Duration

	// RateLimit is the request rate across all compiles sharing the
	// fetcher. Zero means DefaultRateLimit; negative disables limiting.
	RateLimit float64

	// MaxSize limits the response body. Zero means DefaultMaxSize.
	MaxSize int64

	UserAgent string
}

// HTTP downloads remote includes over http and https. It is safe for
// concurrent use; the rate limiter is shared.
type HTTP struct {
	client    *http.Client
	limiter   *rate.Limiter
	maxSize   int64
	userAgent string
}

// NewHTTP returns an HTTP fetcher. A nil client means a new client with
// the configured timeout.
func NewHTTP(cfg HTTPConfig, client *http.Client) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	h := &HTTP{client: client, maxSize: cfg.MaxSize, userAgent: cfg.UserAgent}
	if cfg.RateLimit > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return h
}

// Fetch implements Fetcher.
func (h *HTTP) Fetch(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, error) {
	if src.Kind != ir.SourceRemote {
		return nil, wrap("fetch", src, ErrUnsupported)
	}
	u, err := url.Parse(src.Location)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, wrap("fetch", src, fmt.Errorf("%w: not an http(s) URL", ErrUnsupported))
	}

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, wrap("fetch", src, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, wrap("fetch", src, err)
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, wrap("fetch", src, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, wrap("fetch", src, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, wrap("fetch", src, ErrAccessDenied)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, wrap("fetch", src, fmt.Errorf("unexpected status %s", resp.Status))
	}

	if resp.ContentLength > h.maxSize {
		return nil, wrap("fetch", src, ErrTooLarge)
	}
	content, err := readLimited(resp.Body, h.maxSize)
	if err != nil {
		return nil, wrap("fetch", src, err)
	}
	return fetched(path.Base(u.Path), content), nil
}
