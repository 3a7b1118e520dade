package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: passing
description: "one job"
config: |
  jobs:
    a:
      script: [x]
expect:
  valid: true
  jobs: [a]
`

const failingScenario = `name: failing
description: "expects a job that is not there"
config: |
  jobs:
    a:
      script: [x]
expect:
  jobs: [b]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// TestFindScenarios tests discovery and filtering.
func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b_rules.yaml"), passingScenario)
	writeFile(t, filepath.Join(dir, "a_needs.yml"), passingScenario)
	writeFile(t, filepath.Join(dir, "nested", "c_needs.yaml"), passingScenario)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "golden", "a_needs.yaml"), "ignored")

	files, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_needs.yml"),
		filepath.Join(dir, "b_rules.yaml"),
		filepath.Join(dir, "nested", "c_needs.yaml"),
	}, files)

	files, err = FindScenarios(dir, "*_needs")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = FindScenarios(dir, "{a,b}_*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = FindScenarios(dir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")

	_, err = FindScenarios(filepath.Join(dir, "absent"), "")
	require.Error(t, err)
}

// TestRunSuite tests aggregation, golden update and golden mismatch.
func TestRunSuite(t *testing.T) {
	dir := t.TempDir()
	pass := filepath.Join(dir, "passing.yaml")
	fail := filepath.Join(dir, "failing.yaml")
	broken := filepath.Join(dir, "broken.yaml")
	writeFile(t, pass, passingScenario)
	writeFile(t, fail, failingScenario)
	writeFile(t, broken, "name: [")

	h := New(nil)
	ctx := context.Background()

	res := h.RunSuite(ctx, []string{pass, fail, broken}, SuiteOptions{})
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Passed)
	assert.Equal(t, 2, res.Failed)
	assert.True(t, res.Scenarios[0].Pass)
	assert.Empty(t, res.Scenarios[0].Golden)
	assert.Nil(t, res.Scenarios[0].Errors)
	assert.Equal(t, "failing", res.Scenarios[1].Name)
	assert.Equal(t, []string{"expected jobs [b], got [a]"}, res.Scenarios[1].Errors)
	assert.Equal(t, "broken.yaml", res.Scenarios[2].Name)
	assert.Contains(t, res.Scenarios[2].Errors[0], "failed to load scenario")

	res = h.RunSuite(ctx, []string{pass}, SuiteOptions{Update: true})
	assert.Equal(t, "updated", res.Scenarios[0].Golden)
	assert.FileExists(t, filepath.Join(dir, "golden", "passing.golden"))

	res = h.RunSuite(ctx, []string{pass}, SuiteOptions{})
	assert.True(t, res.Scenarios[0].Pass)
	assert.Equal(t, "matched", res.Scenarios[0].Golden)

	writeFile(t, filepath.Join(dir, "golden", "passing.golden"), `{"jobs":[]}`)
	res = h.RunSuite(ctx, []string{pass}, SuiteOptions{})
	assert.False(t, res.Scenarios[0].Pass)
	assert.Equal(t, "mismatch", res.Scenarios[0].Golden)
	assert.Equal(t, 1, res.Failed)
}
