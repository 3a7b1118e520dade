package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipec/internal/ir"
)

func TestContextOptionsBuild(t *testing.T) {
	dir := writeFiles(t, map[string]string{"files.txt": "# listing\nsrc/main.go\n\ndocs/index.md\n"})

	opts := ContextOptions{
		Vars:         []string{"A=1", "B=x=y"},
		Inputs:       []string{"replicas=3", "name=web", "debug=true"},
		Changed:      []string{"src/main.go"},
		FilesFrom:    filepath.Join(dir, "files.txt"),
		ExistingJobs: []string{"upstream"},
		Ref:          "main",
		Project:      "group/app",
		DAG:          true,
	}
	pctx, err := opts.Build()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"A": "1", "B": "x=y"}, pctx.Variables)
	assert.Equal(t, map[string]any{"replicas": 3, "name": "web", "debug": true}, pctx.Inputs)
	assert.Equal(t, []string{"src/main.go"}, pctx.ChangedPaths)
	assert.Equal(t, []string{"src/main.go", "docs/index.md"}, pctx.RepositoryFiles)
	assert.Equal(t, []string{"upstream"}, pctx.ExistingJobs)
	assert.Equal(t, "main", pctx.Ref)
	assert.Equal(t, "group/app", pctx.ProjectPath)
	assert.Equal(t, ir.ModeDAG, pctx.Mode)
}

func TestContextOptionsEmpty(t *testing.T) {
	pctx, err := (&ContextOptions{}).Build()
	require.NoError(t, err)
	assert.Nil(t, pctx.ChangedPaths)
	assert.Nil(t, pctx.ExistingJobs)
	assert.Equal(t, ir.ModeStage, pctx.SchedulingMode())
}

func TestContextOptionsBadPairs(t *testing.T) {
	_, err := (&ContextOptions{Vars: []string{"=v"}}).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--var")

	_, err = (&ContextOptions{Inputs: []string{"novalue"}}).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--input")
}

func TestLoadContextFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"ctx.yaml": `
ref: main
mode: dag
variables:
  CI_PIPELINE_SOURCE: push
  COUNT: 3
changed_paths: [a.go]
compare_changed_paths:
  main: [b.go]
inputs:
  env: prod
`,
		"ctx.json": `{
  // comments are allowed
  "ref": "dev",
  "existing_jobs": ["lint",],
}`,
		"bad.yaml":  "refs: main\n",
		"mode.yaml": "mode: sideways\n",
	})

	pctx, err := LoadContextFile(filepath.Join(dir, "ctx.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "main", pctx.Ref)
	assert.Equal(t, ir.ModeDAG, pctx.Mode)
	assert.Equal(t, map[string]string{"CI_PIPELINE_SOURCE": "push", "COUNT": "3"}, pctx.Variables)
	assert.Equal(t, []string{"a.go"}, pctx.ChangedPaths)
	assert.Equal(t, map[string][]string{"main": {"b.go"}}, pctx.CompareChangedPaths)
	assert.Equal(t, "prod", pctx.Inputs["env"])

	pctx, err = LoadContextFile(filepath.Join(dir, "ctx.json"))
	require.NoError(t, err)
	assert.Equal(t, "dev", pctx.Ref)
	assert.Equal(t, []string{"lint"}, pctx.ExistingJobs)

	_, err = LoadContextFile(filepath.Join(dir, "bad.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refs")

	_, err = (&ContextOptions{ContextFile: filepath.Join(dir, "mode.yaml")}).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scheduling mode")

	_, err = LoadContextFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestContextFlagsOverrideFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{"ctx.yaml": "ref: dev\nchanged_paths: [a.go]\nvariables:\n  A: file\n"})

	pctx, err := (&ContextOptions{
		ContextFile: filepath.Join(dir, "ctx.yaml"),
		Vars:        []string{"A=flag"},
		Ref:         "main",
		NoDiff:      true,
	}).Build()
	require.NoError(t, err)
	assert.Equal(t, "main", pctx.Ref)
	assert.Equal(t, "flag", pctx.Variables["A"])
	assert.Nil(t, pctx.ChangedPaths)
}

func TestReadSource(t *testing.T) {
	dir := writeFiles(t, map[string]string{"ci/pipeline.cue": "jobs: {}\n"})

	src, err := ReadSource(filepath.Join(dir, "ci", "pipeline.cue"))
	require.NoError(t, err)
	assert.Equal(t, "pipeline.cue", src.Name)
	assert.Equal(t, "jobs: {}\n", string(src.Content))

	_, err = ReadSource(filepath.Join(dir, "missing.yml"))
	require.Error(t, err)
}
