package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipec/internal/ir"
)

func sampleResult() *ir.CompileResult {
	return ir.Success([]ir.JobDefinition{
		{Name: "build", Stage: "build", Script: []string{"make"}, Variables: map[string]string{"A": "1"}, When: ir.WhenOnSuccess},
		{Name: "test", Stage: "test", Variables: map[string]string{}, When: ir.WhenOnSuccess,
			Needs: []ir.Need{{Job: "build", Artifacts: true}}},
		{Name: "deploy", Stage: "deploy", Variables: map[string]string{"A": "2", "B": "3"}, When: ir.WhenManual,
			AllowFailure: true, RulesOutcome: &ir.RulesOutcome{Matched: 1, Clause: "when: manual"}},
	}, nil, []ir.ResolvedInclude{
		{Source: ir.IncludeSource{Kind: ir.SourceLocal, Location: "a.yml"}},
		{Source: ir.IncludeSource{Kind: ir.SourceLocal, Location: "b.yml"}},
	})
}

// TestEvaluateAssertions tests each assertion type, passing and failing.
func TestEvaluateAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		failure   string
	}{
		{"present", Assertion{Type: AssertJobPresent, Job: "build"}, ""},
		{"present fails", Assertion{Type: AssertJobPresent, Job: "lint"}, "Expected: job lint in the pipeline"},
		{"absent", Assertion{Type: AssertJobAbsent, Job: "lint"}, ""},
		{"absent fails", Assertion{Type: AssertJobAbsent, Job: "test"}, "Actual: present"},
		{"order", Assertion{Type: AssertJobOrder, Jobs: []string{"build", "deploy"}}, ""},
		{"order fails", Assertion{Type: AssertJobOrder, Jobs: []string{"deploy", "test"}}, "job test appears too early"},
		{"order missing job", Assertion{Type: AssertJobOrder, Jobs: []string{"build", "lint"}}, "job lint not found"},
		{"field scalar", Assertion{Type: AssertJobField, Job: "deploy", Field: "when", Equals: "manual"}, ""},
		{"field bool", Assertion{Type: AssertJobField, Job: "deploy", Field: "allow_failure", Equals: true}, ""},
		{"field nested", Assertion{Type: AssertJobField, Job: "deploy", Field: "variables.B", Equals: "3"}, ""},
		{"field index", Assertion{Type: AssertJobField, Job: "test", Field: "needs.0.job", Equals: "build"}, ""},
		{"field number", Assertion{Type: AssertJobField, Job: "deploy", Field: "rules_outcome.matched", Equals: 1}, ""},
		{"field subset", Assertion{Type: AssertJobField, Job: "deploy", Field: "variables", Equals: map[string]any{"A": "2"}}, ""},
		{"field list", Assertion{Type: AssertJobField, Job: "build", Field: "script", Equals: []any{"make"}}, ""},
		{"field absent expected", Assertion{Type: AssertJobField, Job: "build", Field: "allow_failure"}, ""},
		{"field mismatch", Assertion{Type: AssertJobField, Job: "build", Field: "when", Equals: "manual"}, "Actual: on_success"},
		{"field missing", Assertion{Type: AssertJobField, Job: "build", Field: "needs", Equals: []any{}}, "Actual: field absent"},
		{"field subset fails", Assertion{Type: AssertJobField, Job: "deploy", Field: "variables", Equals: map[string]any{"C": "1"}}, "Assertion failed: job_field"},
		{"field on absent job", Assertion{Type: AssertJobField, Job: "lint", Field: "when", Equals: "manual"}, "Actual: job not found"},
		{"include order", Assertion{Type: AssertIncludeOrder, Includes: []string{"a.yml", "b.yml"}}, ""},
		{"include order fails", Assertion{Type: AssertIncludeOrder, Includes: []string{"b.yml", "a.yml"}}, "Actual: includes [a.yml b.yml]"},
		{"unknown type", Assertion{Type: "final_state"}, `unknown assertion type "final_state"`},
	}

	compiled := sampleResult()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := EvaluateAssertions(compiled, []Assertion{tt.assertion})
			if tt.failure == "" {
				assert.Empty(t, failures)
				return
			}
			require.Len(t, failures, 1)
			assert.Contains(t, failures[0], tt.failure)
		})
	}
}

// TestAssertionError tests the failure message layout.
func TestAssertionError(t *testing.T) {
	err := &AssertionError{
		Type:     AssertJobAbsent,
		Expected: "job a excluded",
		Actual:   "present",
		Jobs:     []string{"a", "b"},
	}
	assert.Equal(t, "Assertion failed: job_absent\n  Expected: job a excluded\n  Actual: present\n  Jobs: [a b]", err.Error())
}

// TestLookup tests dotted path lookup.
func TestLookup(t *testing.T) {
	doc := map[string]any{"a": map[string]any{"b": []any{"x", "y"}}}

	v, ok := lookup(doc, "a.b.1")
	require.True(t, ok)
	assert.Equal(t, "y", v)

	_, ok = lookup(doc, "a.b.2")
	assert.False(t, ok)
	_, ok = lookup(doc, "a.c")
	assert.False(t, ok)
	_, ok = lookup(doc, "a.b.x")
	assert.False(t, ok)
}
