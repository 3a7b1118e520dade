package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pipec/internal/compiler"
	"github.com/roach88/pipec/internal/ir"
)

// ContextOptions holds the flags that build the pipeline context.
type ContextOptions struct {
	ContextFile  string
	Vars         []string // K=V
	Inputs       []string // k=v, value parsed as YAML
	Changed      []string
	NoDiff       bool
	FilesFrom    string
	ExistingJobs []string
	Ref          string
	Project      string
	DAG          bool
}

func (o *ContextOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.ContextFile, "context", "", "pipeline context file (yaml or json)")
	f.StringArrayVar(&o.Vars, "var", nil, "pipeline variable K=V (repeatable)")
	f.StringArrayVar(&o.Inputs, "input", nil, "spec input k=v (repeatable)")
	f.StringArrayVar(&o.Changed, "changed", nil, "changed path (repeatable)")
	f.BoolVar(&o.NoDiff, "no-diff", false, "no diff information: every changes clause matches")
	f.StringVar(&o.FilesFrom, "files-from", "", "file listing repository paths, one per line")
	f.StringArrayVar(&o.ExistingJobs, "existing-job", nil, "job known to exist in other pipelines (repeatable)")
	f.StringVar(&o.Ref, "ref", "", "branch or tag the pipeline runs for")
	f.StringVar(&o.Project, "project", "", "project path (CI_PROJECT_PATH)")
	f.BoolVar(&o.DAG, "dag", false, "DAG scheduling: needs ignore stage order")
}

// Build assembles the pipeline context. Flags override the context file.
func (o *ContextOptions) Build() (*ir.PipelineContext, error) {
	pctx := &ir.PipelineContext{}
	if o.ContextFile != "" {
		loaded, err := LoadContextFile(o.ContextFile)
		if err != nil {
			return nil, err
		}
		pctx = loaded
	}

	for _, kv := range o.Vars {
		k, v, err := splitPair(kv)
		if err != nil {
			return nil, fmt.Errorf("--var: %w", err)
		}
		if pctx.Variables == nil {
			pctx.Variables = map[string]string{}
		}
		pctx.Variables[k] = v
	}
	for _, kv := range o.Inputs {
		k, raw, err := splitPair(kv)
		if err != nil {
			return nil, fmt.Errorf("--input: %w", err)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		if pctx.Inputs == nil {
			pctx.Inputs = map[string]any{}
		}
		pctx.Inputs[k] = v
	}

	if len(o.Changed) > 0 {
		pctx.ChangedPaths = append(pctx.ChangedPaths, o.Changed...)
	}
	if o.NoDiff {
		pctx.ChangedPaths = nil
		pctx.CompareChangedPaths = nil
	}
	if o.FilesFrom != "" {
		files, err := readLines(o.FilesFrom)
		if err != nil {
			return nil, err
		}
		pctx.RepositoryFiles = files
	}
	if len(o.ExistingJobs) > 0 {
		pctx.ExistingJobs = append(pctx.ExistingJobs, o.ExistingJobs...)
	}
	if o.Ref != "" {
		pctx.Ref = o.Ref
	}
	if o.Project != "" {
		pctx.ProjectPath = o.Project
	}
	if o.DAG {
		pctx.Mode = ir.ModeDAG
	}
	if _, err := ir.ParseSchedulingMode(string(pctx.Mode)); err != nil {
		return nil, err
	}
	return pctx, nil
}

// LoadContextFile reads a pipeline context from YAML or JSON. JSON files
// may carry comments and trailing commas.
func LoadContextFile(path string) (*ir.PipelineContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data = jsonc.ToJSON(data)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse context %s: %w", path, err)
	}

	pctx := &ir.PipelineContext{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           pctx,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode context %s: %w", path, err)
	}
	return pctx, nil
}

// ReadSource reads the root configuration file. The file name relative to
// its directory becomes the source name.
func ReadSource(path string) (compiler.Source, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return compiler.Source{}, err
	}
	return compiler.Source{Name: filepath.Base(path), Content: content}, nil
}

func splitPair(kv string) (string, string, error) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || k == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", kv)
	}
	return k, v, nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file listing: %w", err)
	}
	lines := []string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}
