package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/pipec/internal/store"
)

// CacheOptions holds flags for the cache commands.
type CacheOptions struct {
	*RootOptions
	Path    string
	Expired bool
}

// NewCacheCommand creates the cache command and its subcommands.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the include fetch cache",
		Long: `Inspect or clear the SQLite cache of fetched include files.

The cache path comes from fetch.cache_path in the config file, the
PIPEC_FETCH_CACHE_PATH environment variable, or --path.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Path, "path", "", "cache database path (overrides fetch.cache_path)")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List cached includes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheList(opts, cmd)
		},
	}

	purge := &cobra.Command{
		Use:           "purge",
		Short:         "Remove cached includes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCachePurge(opts, cmd)
		},
	}
	purge.Flags().BoolVar(&opts.Expired, "expired", false, "only remove expired entries")

	cmd.AddCommand(list, purge)
	return cmd
}

func (o *CacheOptions) open(f *OutputFormatter) (*store.Store, error) {
	path := o.Path
	if path == "" {
		cfg, err := o.Config()
		if err != nil {
			return nil, f.fail(ErrCodeConfig, "load config", err)
		}
		path = cfg.Fetch.CachePath
	}
	if path == "" {
		return nil, f.fail(ErrCodeCache, "no cache configured: set fetch.cache_path or --path", nil)
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, f.fail(ErrCodeCache, "open cache", err)
	}
	return s, nil
}

func runCacheList(opts *CacheOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	s, err := opts.open(formatter)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.List(contextOf(cmd))
	if err != nil {
		return formatter.fail(ErrCodeCache, "list cache", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "Cache is empty")
		return nil
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tLOCATION\tSIZE\tEXPIRES\tSTATUS")
	for _, e := range entries {
		status := "fresh"
		if e.Expired {
			status = "expired"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", e.Kind, e.Location, e.Size, e.ExpiresAt.Format("2006-01-02 15:04:05"), status)
	}
	return tw.Flush()
}

// PurgeResult is the JSON payload of cache purge.
type PurgeResult struct {
	Removed int64 `json:"removed"`
	Expired bool  `json:"expired_only"`
}

func runCachePurge(opts *CacheOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	s, err := opts.open(formatter)
	if err != nil {
		return err
	}
	defer s.Close()

	var n int64
	if opts.Expired {
		n, err = s.PurgeExpired(contextOf(cmd))
	} else {
		n, err = s.Purge(contextOf(cmd))
	}
	if err != nil {
		return formatter.fail(ErrCodeCache, "purge cache", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(PurgeResult{Removed: n, Expired: opts.Expired})
	}
	fmt.Fprintf(formatter.Writer, "✓ Removed %d cache entr%s\n", n, plural(n, "y", "ies"))
	return nil
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
