package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/peak-enrich/internal/cache"
	"github.com/sells-group/peak-enrich/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the Wikidata lookup cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count cached label and entity entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCacheStats(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(ctx context.Context, c *config.Config, w io.Writer) error {
	st, err := openCache(ctx, c, false)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	stats, err := cache.CountKeys(ctx, st)
	if err != nil {
		return eris.Wrap(err, "cache stats")
	}

	fmt.Fprintf(w, "driver: %s\n", c.Cache.Driver)
	if p, ok := st.(interface{ Path() string }); ok {
		fmt.Fprintf(w, "path: %s\n", p.Path())
	}
	fmt.Fprintf(w, "label entries: %d\n", stats.Labels)
	fmt.Fprintf(w, "qid entries: %d\n", stats.QIDs)
	if stats.Other > 0 {
		fmt.Fprintf(w, "other entries: %d\n", stats.Other)
	}
	fmt.Fprintf(w, "total: %d\n", stats.Total())
	return nil
}
