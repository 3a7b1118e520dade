package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipec/internal/ir"
)

// TestLoadScenario tests loading a complete scenario file.
func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/rules_and_overrides.yaml")
	require.NoError(t, err)

	assert.Equal(t, "rules_and_overrides", s.Name)
	assert.Contains(t, s.Config, "stages: [build, deploy]")
	require.NotNil(t, s.Context)
	assert.Equal(t, "main", s.Context.Ref)
	assert.Equal(t, []string{"src/main.go"}, s.Context.ChangedPaths)
	require.NotNil(t, s.Expect)
	require.NotNil(t, s.Expect.Valid)
	assert.True(t, *s.Expect.Valid)
	assert.Equal(t, []string{"compile", "deploy"}, s.Expect.Jobs)
	assert.Len(t, s.Assertions, 5)
}

// TestParseScenario_Invalid tests scenario validation.
func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: a\ndescription: d\nconfig: x\nexpect: {valid: true}\nassertion: []\n",
			wantErr: "field assertion not found",
		},
		{
			name:    "missing name",
			yaml:    "description: d\nconfig: x\nexpect: {valid: true}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: a\nconfig: x\nexpect: {valid: true}\n",
			wantErr: "description is required",
		},
		{
			name:    "missing config",
			yaml:    "name: a\ndescription: d\nexpect: {valid: true}\n",
			wantErr: "config is required",
		},
		{
			name:    "nothing to check",
			yaml:    "name: a\ndescription: d\nconfig: x\n",
			wantErr: "expect or assertions is required",
		},
		{
			name:    "diagnostic without code",
			yaml:    "name: a\ndescription: d\nconfig: x\nexpect:\n  errors:\n    - location: jobs\n",
			wantErr: "expect.errors[0]: code is required",
		},
		{
			name:    "bad mode",
			yaml:    "name: a\ndescription: d\nconfig: x\ncontext: {mode: eager}\nexpect: {valid: true}\n",
			wantErr: "invalid scheduling mode",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: a\ndescription: d\nconfig: x\nassertions:\n  - type: trace_contains\n",
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name:    "job_field without field",
			yaml:    "name: a\ndescription: d\nconfig: x\nassertions:\n  - type: job_field\n    job: a\n",
			wantErr: "job and field are required",
		},
		{
			name:    "job_order with one job",
			yaml:    "name: a\ndescription: d\nconfig: x\nassertions:\n  - type: job_order\n    jobs: [a]\n",
			wantErr: "at least two entries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestLoadScenario_MissingFile tests the error for an absent file.
func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// TestDiagnosticMatch tests diagnostic selection.
func TestDiagnosticMatch(t *testing.T) {
	d := ir.NewError(ir.KindGraph, ir.ErrUndefinedNeed, "jobs.a.needs", "a job: undefined need: b")

	assert.True(t, DiagnosticMatch{Code: "E501"}.Matches(d))
	assert.True(t, DiagnosticMatch{Code: "E501", Kind: "GraphError", Location: "jobs.a.needs"}.Matches(d))
	assert.True(t, DiagnosticMatch{Code: "E501", Contains: "undefined need"}.Matches(d))
	assert.True(t, DiagnosticMatch{Code: "E501", Message: "a job: undefined need: b"}.Matches(d))
	assert.False(t, DiagnosticMatch{Code: "E502"}.Matches(d))
	assert.False(t, DiagnosticMatch{Code: "E501", Kind: "StructuralError"}.Matches(d))
	assert.False(t, DiagnosticMatch{Code: "E501", Location: "jobs.b.needs"}.Matches(d))
	assert.False(t, DiagnosticMatch{Code: "E501", Contains: "cycle"}.Matches(d))

	assert.Equal(t, `E501 at jobs.a.needs containing "need"`,
		DiagnosticMatch{Code: "E501", Location: "jobs.a.needs", Contains: "need"}.String())
}
