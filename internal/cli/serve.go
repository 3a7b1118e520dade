package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/pipec/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Host string
	Port int
	Root string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lint API over HTTP",
		Long: `Serve the lint API.

POST /api/v1/ci/lint compiles the configuration in the request body and
returns the verdict, diagnostics and jobs. GET /healthz reports liveness.
Local includes resolve below --root.

The server stops gracefully on SIGINT or SIGTERM.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "listen port (overrides server.port)")
	cmd.Flags().StringVar(&opts.Root, "root", ".", "repository root for local includes")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	logger := opts.Logger()

	srvCfg := cfg.Server
	if opts.Host != "" {
		srvCfg.Host = opts.Host
	}
	if opts.Port != 0 {
		srvCfg.Port = opts.Port
	}

	c, closeFetcher, err := newCompiler(cfg, opts.Root, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "set up fetchers", err)
	}
	defer func() {
		if err := closeFetcher(); err != nil {
			logger.Warn("close fetch cache", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(c, srvCfg, server.WithLogger(logger))
	if err := srv.ListenAndServe(ctx); err != nil {
		return WrapExitError(ExitCommandError, "serve", err)
	}
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
