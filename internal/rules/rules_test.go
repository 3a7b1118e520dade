package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipec/internal/ir"
)

func boolPtr(b bool) *bool { return &b }

func TestEvaluateFirstMatchWins(t *testing.T) {
	set := MustCompile([]Rule{
		{If: `$CI_COMMIT_BRANCH == "main"`, When: ir.WhenManual, Variables: map[string]string{"FROM": "c1"}},
		{If: `$CI_COMMIT_BRANCH`, When: ir.WhenAlways, Variables: map[string]string{"FROM": "c2", "EXTRA": "x"}},
	})

	out, err := set.Evaluate(&Scope{Variables: map[string]string{"CI_COMMIT_BRANCH": "main"}})
	require.NoError(t, err)
	assert.True(t, out.Matched)
	assert.Equal(t, 0, out.Index)
	assert.Equal(t, ir.WhenManual, out.When(ir.WhenOnSuccess))
	assert.Equal(t, map[string]string{"FROM": "c1"}, out.Rule.Variables, "later rules leave no trace")

	only, err := MustCompile([]Rule{set.rules[0].rule}).Evaluate(&Scope{Variables: map[string]string{"CI_COMMIT_BRANCH": "main"}})
	require.NoError(t, err)
	assert.Equal(t, only, out, "outcome equals evaluating the first rule alone")
}

func TestEvaluateLaterRulesNotEvaluated(t *testing.T) {
	// The second rule would fail at evaluation time: =~ against a
	// variable that is not a pattern.
	set := MustCompile([]Rule{
		{When: ir.WhenOnSuccess},
		{If: `$A =~ $NOT_A_PATTERN`},
	})
	out, err := set.Evaluate(&Scope{Variables: map[string]string{"A": "x", "NOT_A_PATTERN": "plain"}})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Index)
}

func TestEvaluateNoMatchExcludes(t *testing.T) {
	set := MustCompile([]Rule{{If: `$X == "1"`}})
	out, err := set.Evaluate(&Scope{})
	require.NoError(t, err)
	assert.False(t, out.Matched)
	assert.False(t, out.Included())
	assert.Nil(t, out.Report())
}

func TestEvaluateWhenNeverExcludes(t *testing.T) {
	set := MustCompile([]Rule{{If: `$X`, When: ir.WhenNever}, {}})
	out, err := set.Evaluate(&Scope{Variables: map[string]string{"X": "1"}})
	require.NoError(t, err)
	assert.True(t, out.Matched)
	assert.False(t, out.Included())
}

func TestEvaluateUnconditionalRule(t *testing.T) {
	set := MustCompile([]Rule{{If: `$NOPE`}, {When: ir.WhenDelayed, StartIn: "5 minutes", AllowFailure: boolPtr(true)}})
	out, err := set.Evaluate(&Scope{})
	require.NoError(t, err)
	assert.True(t, out.Included())
	assert.Equal(t, 1, out.Index)
	assert.Equal(t, &ir.RulesOutcome{Matched: 1, Clause: "when: delayed"}, out.Report())
}

func TestChangesFallbackWithoutDiff(t *testing.T) {
	set := MustCompile([]Rule{{Changes: &Changes{Paths: []string{"docs/**/*.md"}}}})

	out, err := set.Evaluate(&Scope{ChangedPaths: nil})
	require.NoError(t, err)
	assert.True(t, out.Matched, "no diff information means changes is true")

	out, err = set.Evaluate(&Scope{ChangedPaths: []string{}})
	require.NoError(t, err)
	assert.False(t, out.Matched, "an empty diff matches nothing")

	out, err = set.Evaluate(&Scope{ChangedPaths: []string{"src/main.go", "docs/a/b.md"}})
	require.NoError(t, err)
	assert.True(t, out.Matched)
}

func TestChangesCompareTo(t *testing.T) {
	set := MustCompile([]Rule{{Changes: &Changes{Paths: []string{"*.go"}, CompareTo: "refs/heads/$BASE"}}})
	scope := &Scope{
		Variables:           map[string]string{"BASE": "main"},
		ChangedPaths:        []string{"main.go"},
		CompareChangedPaths: map[string][]string{"refs/heads/main": {"README.md"}},
	}
	out, err := set.Evaluate(scope)
	require.NoError(t, err)
	assert.False(t, out.Matched, "the compare_to diff is used instead of the pipeline diff")

	scope.Variables["BASE"] = "unknown"
	out, err = set.Evaluate(scope)
	require.NoError(t, err)
	assert.True(t, out.Matched, "an unknown compare_to ref is treated as changed")
}

func TestExists(t *testing.T) {
	set := MustCompile([]Rule{{Exists: &Exists{Paths: []string{"$DIR/Dockerfile"}}}})

	out, err := set.Evaluate(&Scope{})
	require.NoError(t, err)
	assert.False(t, out.Matched, "no listing means exists is false")

	out, err = set.Evaluate(&Scope{
		Variables:       map[string]string{"DIR": "build"},
		RepositoryFiles: []string{"README.md", "build/Dockerfile"},
	})
	require.NoError(t, err)
	assert.True(t, out.Matched)
}

func TestExistsComparisonLimit(t *testing.T) {
	files := make([]string, MaxExistsComparisons+1)
	for i := range files {
		files[i] = "f"
	}
	set := MustCompile([]Rule{{Exists: &Exists{Paths: []string{"nothing-matches"}}}})
	out, err := set.Evaluate(&Scope{RepositoryFiles: files})
	require.NoError(t, err)
	assert.True(t, out.Matched)
}

func TestCompileReportsEveryMalformedRule(t *testing.T) {
	_, diags := Compile([]Rule{
		{If: `$A ==`},
		{When: ir.WhenAlways},
		{If: `$B = "x"`},
		{Changes: &Changes{Paths: []string{"a/[b"}}},
	}, "jobs.test.rules")

	require.Len(t, diags, 3)
	assert.Equal(t, "jobs.test.rules[0].if", diags[0].Location)
	assert.Equal(t, ir.ErrExpressionSyntax, diags[0].Code)
	assert.Equal(t, ir.KindRuleEvaluation, diags[0].Kind)
	assert.Equal(t, "jobs.test.rules[2].if", diags[1].Location)
	assert.Equal(t, "jobs.test.rules[3].changes[0]", diags[2].Location)
	assert.Equal(t, ir.ErrRulePattern, diags[2].Code)
}

func TestEvaluateErrorIsDiagnostic(t *testing.T) {
	set, diags := Compile([]Rule{{If: `$A =~ $B`}}, "workflow.rules")
	require.Empty(t, diags)

	_, err := set.Evaluate(&Scope{Variables: map[string]string{"A": "x", "B": "y"}})
	var d ir.Diagnostic
	require.True(t, errors.As(err, &d))
	assert.Equal(t, ir.ErrExpressionEval, d.Code)
	assert.Equal(t, "workflow.rules[0].if", d.Location)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, `if: $A == "1"`, Rule{If: `$A == "1"`}.Summary())
	assert.Equal(t, "when: on_success", Rule{}.Summary())
	assert.Equal(t, "if: $A && changes: [a, b] compare_to: main && exists: [c]", Rule{
		If:      "$A",
		Changes: &Changes{Paths: []string{"a", "b"}, CompareTo: "main"},
		Exists:  &Exists{Paths: []string{"c"}},
	}.Summary())
}
