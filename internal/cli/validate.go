package cli

import (
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a pipeline configuration",
		Long: `Validate a pipeline configuration without printing the compiled jobs.

Runs the full compile, so rules, includes and the job graph are all
checked against the pipeline context. Only the verdict and diagnostics
are reported.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ".gitlab-ci.yml"
			if len(args) == 1 {
				file = args[0]
			}
			return runCompile(opts, file, cmd, true)
		},
	}

	opts.Context.register(cmd)
	cmd.Flags().StringVar(&opts.Root, "root", "", "repository root for local includes (default: the file's directory)")

	return cmd
}
