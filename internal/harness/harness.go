package harness

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/pipec/internal/compiler"
	"github.com/roach88/pipec/internal/fetch"
	"github.com/roach88/pipec/internal/ir"
)

// Harness runs scenarios. The zero value is ready to use.
type Harness struct {
	logger *zap.Logger
}

// New creates a Harness logging compiles to logger. A nil logger
// discards logs.
func New(logger *zap.Logger) *Harness {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harness{logger: logger}
}

// Run compiles the scenario and checks its expectations with a default
// Harness.
func Run(ctx context.Context, scenario *Scenario) *Result {
	return New(nil).Run(ctx, scenario)
}

// Run compiles the scenario and checks its expectations.
//
// Each scenario compiles in isolation: includes resolve only against the
// scenario's own files, through an in-memory fetcher.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) *Result {
	logger := h.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mem := fetch.NewMemory()
	for path, content := range scenario.Files {
		mem.AddLocal(path, content)
	}

	compiled := compiler.Compile(ctx,
		compiler.Source{Name: scenario.Source, Content: []byte(scenario.Config)},
		scenario.Context,
		compiler.WithFetcher(mem),
		compiler.WithLogger(logger.With(zap.String("scenario", scenario.Name))),
	)

	result := NewResult(compiled)
	if scenario.Expect != nil {
		for _, msg := range checkExpectation(compiled, scenario.Expect) {
			result.AddError(msg)
		}
	}

	for _, msg := range EvaluateAssertions(compiled, scenario.Assertions) {
		result.AddError(msg)
	}
	return result
}

func checkExpectation(compiled *ir.CompileResult, exp *Expectation) []string {
	var msgs []string
	if exp.Valid != nil && *exp.Valid != compiled.Valid() {
		msg := fmt.Sprintf("expected valid=%t, got valid=%t", *exp.Valid, compiled.Valid())
		if len(compiled.Errors) > 0 {
			msg += fmt.Sprintf(" (first error: %s)", compiled.Errors[0].Error())
		}
		msgs = append(msgs, msg)
	}
	if exp.Jobs != nil && !slices.Equal(exp.Jobs, compiled.JobNames()) {
		msgs = append(msgs, fmt.Sprintf("expected jobs %v, got %v", exp.Jobs, compiled.JobNames()))
	}
	msgs = append(msgs, checkDiagnostics("error", exp.Errors, compiled.Errors)...)
	msgs = append(msgs, checkDiagnostics("warning", exp.Warnings, compiled.Warnings)...)
	return msgs
}

func checkDiagnostics(what string, want []DiagnosticMatch, got ir.Diagnostics) []string {
	if want == nil {
		return nil
	}
	var msgs []string
	if len(want) != len(got) {
		msgs = append(msgs, fmt.Sprintf("expected %d %s(s), got %d: %v", len(want), what, len(got), got))
	}
	for _, m := range want {
		found := false
		for _, d := range got {
			if m.Matches(d) {
				found = true
				break
			}
		}
		if !found {
			msgs = append(msgs, fmt.Sprintf("expected %s %s, not reported", what, m))
		}
	}
	return msgs
}
