package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

// Key prefixes of the portal cache, below redis.key_prefix + "cache:".
const (
	lookupCachePrefix  = "lookup:"
	profileCachePrefix = "profile:"
)

func newCacheCmd(open BackendOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the portal's Redis response cache",
	}
	cmd.AddCommand(newCacheFlushCmd(open))
	return cmd
}

func newCacheFlushCmd(open BackendOpener) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "flush [prefix]",
		Short: "Drop cached User Tool results",
		Long: "Deletes cached entries under the given key prefix so the next request\n" +
			"reads the session store again. The default prefix is \"" + lookupCachePrefix + "\" (User Tool\n" +
			"lookups); use \"" + profileCachePrefix + "\" for viewer profiles or --all for everything.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			prefix := lookupCachePrefix
			switch {
			case all && len(args) > 0:
				return errors.InvalidParam("a prefix cannot be combined with --all")
			case all:
				prefix = ""
			case len(args) > 0:
				prefix = args[0]
			}

			ctx, cancel := commandContext(cmd.Context(), cliCtx)
			defer cancel()

			backend, err := open(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer backend.Close()
			if backend.Cache == nil {
				return errors.New(errors.ErrCodeNotImplemented, "the session backend has no cache")
			}

			n, err := backend.Cache.DeleteByPrefix(ctx, prefix)
			if err != nil {
				return err
			}
			cliCtx.Logger.Info("Cache flushed", logging.String("prefix", prefix), logging.Int64("deleted", n))
			return PrintResult(cmd, flushResult{Prefix: prefix, Deleted: n})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "drop every cached entry")
	return cmd
}

type flushResult struct {
	Prefix  string `json:"prefix"`
	Deleted int64  `json:"deleted"`
}

func (r flushResult) TableHeaders() []string { return []string{"PREFIX", "DELETED"} }

func (r flushResult) TableRows() [][]string {
	prefix := r.Prefix
	if prefix == "" {
		prefix = "*"
	}
	return [][]string{{prefix, strconv.FormatInt(r.Deleted, 10)}}
}
