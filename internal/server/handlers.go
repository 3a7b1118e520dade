package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/pipec/internal/compiler"
	"github.com/roach88/pipec/internal/ir"
)

// Error codes.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeTooLarge         = "PAYLOAD_TOO_LARGE"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one error.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LintRequest is the body of POST /api/v1/ci/lint.
type LintRequest struct {
	Content string              `json:"content"`
	Name    string              `json:"name,omitempty"`
	Context *ir.PipelineContext `json:"context,omitempty"`
}

// LintResponse reports one compile. Jobs are set only when Valid.
type LintResponse struct {
	Valid       bool                 `json:"valid"`
	Errors      ir.Diagnostics       `json:"errors"`
	Warnings    ir.Diagnostics       `json:"warnings"`
	Jobs        []ir.JobDefinition   `json:"jobs"`
	Includes    []ir.ResolvedInclude `json:"includes,omitempty"`
	Fingerprint string               `json:"fingerprint,omitempty"`
	RequestID   string               `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeLint(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if s.cfg.CompileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CompileTimeout)
		defer cancel()
	}

	result := s.compiler.Compile(ctx, compiler.Source{Name: req.Name, Content: []byte(req.Content)}, req.Context)

	resp := LintResponse{
		Valid:     result.Valid(),
		Errors:    nonNil(result.Errors),
		Warnings:  nonNil(result.Warnings),
		Jobs:      result.Jobs,
		Includes:  result.Includes,
		RequestID: RequestID(r.Context()),
	}
	if resp.Jobs == nil {
		resp.Jobs = []ir.JobDefinition{}
	}
	if resp.Valid {
		fp, err := result.Fingerprint()
		if err != nil {
			s.logger.Error("fingerprint compile result", zap.String("request_id", resp.RequestID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
			return
		}
		resp.Fingerprint = fp
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeLint(w http.ResponseWriter, r *http.Request) (*LintRequest, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return nil, fmt.Errorf("unsupported content type %q", ct)
	}
	body := io.Reader(r.Body)
	if s.cfg.MaxBodySize > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize)
	}

	var req LintRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, errors.New("content is required")
	}
	if req.Context != nil && req.Context.Mode != "" {
		if _, err := ir.ParseSchedulingMode(string(req.Context.Mode)); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

func nonNil(d ir.Diagnostics) ir.Diagnostics {
	if d == nil {
		return ir.Diagnostics{}
	}
	return d
}
