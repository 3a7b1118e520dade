package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipec/internal/ir"
)

func remote(location string) ir.IncludeSource {
	return ir.IncludeSource{Kind: ir.SourceRemote, Location: location}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ci/shared.yml", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pipec-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("shared: {script: x}"))
	})
	mux.HandleFunc("/big.yml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 2048)))
	})
	mux.HandleFunc("/private.yml", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/broken.yml", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTP_Fetch(t *testing.T) {
	srv := newTestServer(t)
	h := NewHTTP(HTTPConfig{RateLimit: -1, UserAgent: "pipec-test"}, srv.Client())

	f, err := h.Fetch(context.Background(), remote(srv.URL+"/ci/shared.yml"))
	require.NoError(t, err)
	assert.Equal(t, "shared.yml", f.Name)
	assert.Equal(t, "shared: {script: x}", string(f.Content))
	assert.Equal(t, Identity(f.Content), f.Identity)
}

func TestHTTP_Errors(t *testing.T) {
	srv := newTestServer(t)
	h := NewHTTP(HTTPConfig{RateLimit: -1, MaxSize: 1024, UserAgent: "pipec-test"}, srv.Client())

	tests := []struct {
		name string
		src  ir.IncludeSource
		want error
	}{
		{"not found", remote(srv.URL + "/missing.yml"), ErrNotFound},
		{"too large", remote(srv.URL + "/big.yml"), ErrTooLarge},
		{"forbidden", remote(srv.URL + "/private.yml"), ErrAccessDenied},
		{"not http", remote("ftp://example.com/a.yml"), ErrUnsupported},
		{"wrong kind", local("a.yml"), ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Fetch(context.Background(), tt.src)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := h.Fetch(context.Background(), remote(srv.URL+"/broken.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestHTTP_RateLimitHonorsContext(t *testing.T) {
	srv := newTestServer(t)
	// One token per hour: the second request must wait and give up when
	// the context ends.
	h := NewHTTP(HTTPConfig{RateLimit: 1.0 / 3600, UserAgent: "pipec-test"}, srv.Client())

	_, err := h.Fetch(context.Background(), remote(srv.URL+"/ci/shared.yml"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = h.Fetch(ctx, remote(srv.URL+"/ci/shared.yml"))
	require.Error(t, err)
}

func TestHTTP_Defaults(t *testing.T) {
	h := NewHTTP(HTTPConfig{}, nil)
	assert.Equal(t, int64(DefaultMaxSize), h.maxSize)
	assert.Equal(t, DefaultUserAgent, h.userAgent)
	assert.Equal(t, DefaultHTTPTimeout, h.client.Timeout)
	require.NotNil(t, h.limiter)
}
