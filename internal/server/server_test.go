package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/pipec/internal/compiler"
	"github.com/roach88/pipec/internal/config"
	"github.com/roach88/pipec/internal/fetch"
	"github.com/roach88/pipec/internal/ir"
	"github.com/roach88/pipec/internal/testutil"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	mem := fetch.NewMemory().AddLocal("common.yml", "variables:\n  SHARED: \"1\"\n")
	c := compiler.New(compiler.WithFetcher(mem))
	cfg := config.ServerConfig{MaxBodySize: 1 << 16, CompileTimeout: 5 * time.Second}
	opts = append([]Option{WithIDGenerator(testutil.NewFixedIDGenerator("req-1"))}, opts...)
	return New(c, cfg, opts...)
}

func lint(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ci/lint", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeLint(t *testing.T, rec *httptest.ResponseRecorder) LintResponse {
	t.Helper()
	var resp LintResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// TestLint_Valid tests a successful lint with an include.
func TestLint_Valid(t *testing.T) {
	s := newTestServer(t)
	rec := lint(t, s, `{"content":"include: common.yml\njobs:\n  build:\n    script: [make]\n"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))

	resp := decodeLint(t, rec)
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Errors)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "build", resp.Jobs[0].Name)
	assert.Equal(t, "1", resp.Jobs[0].Variables["SHARED"])
	assert.Len(t, resp.Fingerprint, 64)
	assert.Equal(t, "req-1", resp.RequestID)
	require.Len(t, resp.Includes, 1)
}

// TestLint_Invalid tests that an invalid pipeline is a 200 with errors.
func TestLint_Invalid(t *testing.T) {
	s := newTestServer(t)
	rec := lint(t, s, `{"content":"jobs:\n  test:\n    script: [x]\n    bogus_key: 1\n"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeLint(t, rec)
	assert.False(t, resp.Valid)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, ir.ErrUnknownKey, resp.Errors[0].Code)
	assert.Equal(t, "jobs.test.bogus_key", resp.Errors[0].Location)
	assert.Empty(t, resp.Jobs)
	assert.Empty(t, resp.Fingerprint)
}

// TestLint_Context tests that the request context drives rules.
func TestLint_Context(t *testing.T) {
	s := newTestServer(t)
	content := `jobs:\n  deploy:\n    script: [x]\n    rules:\n      - if: $CI_COMMIT_REF_NAME == \"main\"\n`

	resp := decodeLint(t, lint(t, s, `{"content":"`+content+`","context":{"ref":"main"}}`))
	assert.Len(t, resp.Jobs, 1)

	resp = decodeLint(t, lint(t, s, `{"content":"`+content+`","context":{"ref":"dev"}}`))
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Jobs)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, ir.WarnNoJobs, resp.Warnings[0].Code)
}

// TestLint_BadRequests tests request validation.
func TestLint_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		code    string
		message string
	}{
		{"malformed json", `{"content":`, http.StatusBadRequest, CodeBadRequest, "invalid request body"},
		{"unknown field", `{"content":"a: 1","extra":true}`, http.StatusBadRequest, CodeBadRequest, "unknown field"},
		{"empty content", `{"content":"  "}`, http.StatusBadRequest, CodeBadRequest, "content is required"},
		{"bad mode", `{"content":"a: 1","context":{"mode":"fast"}}`, http.StatusBadRequest, CodeBadRequest, "invalid scheduling mode"},
		{"too large", `{"content":"` + strings.Repeat("x", 1<<17) + `"}`, http.StatusRequestEntityTooLarge, CodeTooLarge, "exceeds"},
	}

	s := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := lint(t, s, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Contains(t, body.Error.Message, tt.message)
		})
	}
}

// TestLint_UnsupportedContentType tests that only JSON bodies are read.
func TestLint_UnsupportedContentType(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ci/lint", strings.NewReader("jobs: {}"))
	req.Header.Set("Content-Type", "text/yaml")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeBadRequest, decodeError(t, rec).Error.Code)
}

// TestRouting tests health, unknown routes and wrong methods.
func TestRouting(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method string
		path   string
		status int
		code   string
	}{
		{http.MethodGet, "/healthz", http.StatusOK, ""},
		{http.MethodGet, "/does-not-exist", http.StatusNotFound, CodeNotFound},
		{http.MethodGet, "/api/v1/ci/lint", http.StatusMethodNotAllowed, CodeMethodNotAllowed},
		{http.MethodPost, "/healthz", http.StatusMethodNotAllowed, CodeMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, rec).Error.Code)
			}
		})
	}
}

// TestRecovery tests that a panicking handler becomes a JSON 500.
func TestRecovery(t *testing.T) {
	s := newTestServer(t)
	h := s.recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, CodeInternal, body.Error.Code)
	assert.Equal(t, "panic: boom", body.Error.Message)
}

// TestRequestLogging tests that each request is logged with its id.
func TestRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := newTestServer(t, WithLogger(zap.New(core)))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "/healthz", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}

// TestUUIDGenerator tests the default request ids.
func TestUUIDGenerator(t *testing.T) {
	var g uuidGenerator
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

// TestServe tests serving on a listener and graceful shutdown.
func TestServe(t *testing.T) {
	s := newTestServer(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
