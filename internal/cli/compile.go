package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/pipec/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Context ContextOptions
	Output  string // canonical JSON output path
	Root    string // repository root for local includes
}

// CompileOutput is the JSON payload of compile and validate.
type CompileOutput struct {
	Valid       bool              `json:"valid"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Result      *ir.CompileResult `json:"result"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Compile a pipeline configuration into jobs",
		Long: `Compile a pipeline configuration into the flat list of jobs that would run.

The file defaults to .gitlab-ci.yml. Local includes resolve below the
file's directory unless --root is given. Rules are evaluated against the
pipeline context built from --context and the context flags.

Exit codes:
  0 - Pipeline valid
  1 - Pipeline invalid
  2 - Command error (unreadable file, bad context, etc.)

Examples:
  pipec compile
  pipec compile ci/pipeline.yml --ref main --var CI_PIPELINE_SOURCE=push
  pipec compile --context ctx.yaml --output compiled.json
  pipec compile --format json --changed src/main.go`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ".gitlab-ci.yml"
			if len(args) == 1 {
				file = args[0]
			}
			return runCompile(opts, file, cmd, false)
		},
	}

	opts.Context.register(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the canonical compile result to this file")
	cmd.Flags().StringVar(&opts.Root, "root", "", "repository root for local includes (default: the file's directory)")

	return cmd
}

func runCompile(opts *CompileOptions, file string, cmd *cobra.Command, validateOnly bool) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.Config()
	if err != nil {
		return formatter.fail(ErrCodeConfig, "load config", err)
	}
	logger := opts.Logger().With(zap.String("run_id", newRunID()), zap.String("file", file))

	src, err := ReadSource(file)
	if err != nil {
		if os.IsNotExist(err) {
			return formatter.fail(ErrCodeNotFound, fmt.Sprintf("file not found: %s", file), nil)
		}
		return formatter.fail(ErrCodeBadInput, "read "+file, err)
	}
	pctx, err := opts.Context.Build()
	if err != nil {
		return formatter.fail(ErrCodeBadContext, "build pipeline context", err)
	}

	root := opts.Root
	if root == "" {
		root = filepath.Dir(file)
	}
	c, closeFetcher, err := newCompiler(cfg, root, logger)
	if err != nil {
		return formatter.fail(ErrCodeCache, "set up fetchers", err)
	}
	defer func() {
		if err := closeFetcher(); err != nil {
			logger.Warn("close fetch cache", zap.Error(err))
		}
	}()

	formatter.VerboseLog("Compiling %s (root %s, mode %s)", file, root, pctx.SchedulingMode())
	result := c.Compile(contextOf(cmd), src, pctx)

	out := CompileOutput{Valid: result.Valid(), Result: result}
	if !result.Valid() {
		if err := formatter.Invalid(out, result.Errors); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("pipeline invalid: %d error(s)", len(result.Errors)))
	}

	fp, err := result.Fingerprint()
	if err != nil {
		return formatter.fail(ErrCodeGeneric, "fingerprint result", err)
	}
	out.Fingerprint = fp

	if opts.Output != "" && !validateOnly {
		if err := writeCanonical(opts.Output, result); err != nil {
			return formatter.fail(ErrCodeWriteFailure, "write "+opts.Output, err)
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	if formatter.Format == "json" {
		if validateOnly {
			out.Result = &ir.CompileResult{Warnings: result.Warnings, Includes: result.Includes}
		}
		return formatter.Success(out)
	}

	if validateOnly {
		fmt.Fprintf(formatter.Writer, "✓ %s is valid (%d job(s))\n", src.Name, len(result.Jobs))
	} else {
		fmt.Fprintf(formatter.Writer, "✓ Compiled %s: %d job(s)\n", src.Name, len(result.Jobs))
		printJobs(formatter.Writer, result.Jobs)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintf(formatter.Writer, "%d warning(s):\n", len(result.Warnings))
		formatter.Diagnostics(result.Warnings)
	}
	if formatter.Verbose {
		for _, inc := range result.Includes {
			formatter.VerboseLog("included %s", inc.Source)
		}
		formatter.VerboseLog("fingerprint %s", fp)
	}
	return nil
}

// newRunID tags the log lines of one compile.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func printJobs(w io.Writer, jobs []ir.JobDefinition) {
	stage := ""
	for _, j := range jobs {
		if j.Stage != stage {
			stage = j.Stage
			fmt.Fprintf(w, "\n%s:\n", stage)
		}
		line := "  " + j.Name
		if j.When != "" && j.When != "on_success" {
			line += fmt.Sprintf(" (%s)", j.When)
		}
		if len(j.Needs) > 0 {
			line += fmt.Sprintf(" needs %d", len(j.Needs))
		}
		fmt.Fprintln(w, line)
	}
}

func writeCanonical(path string, result *ir.CompileResult) error {
	data, err := result.Canonical()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
