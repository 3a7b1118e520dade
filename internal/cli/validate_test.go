package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidPipeline(t *testing.T) {
	dir := writeFiles(t, map[string]string{"pipeline.yml": validPipeline})

	out, err := runCommand(t, "text", "validate", filepath.Join(dir, "pipeline.yml"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ pipeline.yml is valid (2 job(s))")
	assert.NotContains(t, out, "needs 1")
}

func TestValidateValidPipelineJSON(t *testing.T) {
	dir := writeFiles(t, map[string]string{"pipeline.yml": validPipeline})

	out, err := runCommand(t, "json", "validate", filepath.Join(dir, "pipeline.yml"))
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   CompileOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Result)
	assert.Empty(t, resp.Data.Result.Jobs)
}

func TestValidateInvalidPipeline(t *testing.T) {
	dir := writeFiles(t, map[string]string{"pipeline.yml": `
stages: [build]
jobs:
  test:
    stage: test
    script: [echo]
`})

	out, err := runCommand(t, "text", "validate", filepath.Join(dir, "pipeline.yml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E108")
	assert.Contains(t, out, "chosen stage test does not exist")
}

func TestValidateSyntaxError(t *testing.T) {
	dir := writeFiles(t, map[string]string{"pipeline.yml": "jobs: [unclosed\n"})

	out, err := runCommand(t, "text", "validate", filepath.Join(dir, "pipeline.yml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E001 SyntaxError")
}

func TestValidateDAGMode(t *testing.T) {
	dir := writeFiles(t, map[string]string{"pipeline.yml": `
stages: [build, test]
jobs:
  build:
    stage: build
    script: [make]
    needs: [test]
  test:
    stage: test
    script: [make test]
`})
	file := filepath.Join(dir, "pipeline.yml")

	_, err := runCommand(t, "text", "validate", file)
	require.Error(t, err)

	_, err = runCommand(t, "text", "validate", file, "--dag")
	require.NoError(t, err)
}
