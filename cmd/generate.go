package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/peak-enrich/internal/config"
	"github.com/sells-group/peak-enrich/internal/emit"
	"github.com/sells-group/peak-enrich/internal/pipeline"
	"github.com/sells-group/peak-enrich/internal/resolve"
	"github.com/sells-group/peak-enrich/internal/source"
)

type generateOptions struct {
	out     string
	noCache bool
	limit   int
}

var genOpts generateOptions

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Resolve peaks against Wikidata and write the SQL patch",
	Long: "Reads every peak from the data source, resolves coordinates and elevation " +
		"for the non-korona ones and writes an UPDATE script wrapped in a transaction.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runGenerate(ctx, cfg, genOpts, cmd.OutOrStdout())
	},
}

func init() {
	generateCmd.Flags().StringVar(&genOpts.out, "out", "", "output SQL path (default from output.path)")
	generateCmd.Flags().BoolVar(&genOpts.noCache, "no-cache", false, "use a throwaway in-memory cache")
	generateCmd.Flags().IntVar(&genOpts.limit, "limit", 0, "resolve at most N peaks (0 = all)")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(ctx context.Context, c *config.Config, opts generateOptions, w io.Writer) error {
	if opts.out != "" {
		c.Output.Path = opts.out
	}
	if opts.limit < 0 {
		return eris.New("generate: --limit must be >= 0")
	}

	if a := source.Check(c.Source); !a.Available {
		return eris.Errorf("generate: data source unavailable: %s", a.Reason)
	}
	if err := c.Validate("generate"); err != nil {
		return err
	}

	reader, err := source.Open(ctx, c.Source)
	if err != nil {
		return eris.Wrap(err, "generate: open source")
	}
	peaks, err := reader.ReadPeaks(ctx)
	reader.Close() //nolint:errcheck
	if err != nil {
		return eris.Wrap(err, "generate: read peaks")
	}
	zap.L().Info("generate: loaded peaks", zap.Int("count", len(peaks)), zap.String("driver", c.Source.Driver))

	overrides, err := resolve.LoadOverrides(c.Pipeline.OverridesFile)
	if err != nil {
		return err
	}

	store, err := openCache(ctx, c, opts.noCache)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	r := resolve.New(newWikidataClient(c), store, resolverOptions(c))

	sum, err := pipeline.Run(ctx, peaks,
		pipeline.Deps{Resolver: r, Overrides: overrides},
		pipeline.Options{Delay: pipelineDelay(c.Pipeline.DelayMs), Limit: opts.limit},
	)
	if err != nil {
		// Keep what was resolved before the abort.
		if ferr := store.Flush(context.WithoutCancel(ctx)); ferr != nil {
			zap.L().Warn("generate: cache flush failed", zap.Error(ferr))
		}
		return err
	}

	header := emit.Header{Tool: "peak-enrich generate", RunID: sum.RunID, GeneratedAt: time.Now()}
	if err := emit.WriteFile(c.Output.Path, sum.Builder, header); err != nil {
		return err
	}

	if err := store.Flush(ctx); err != nil {
		return eris.Wrap(err, "generate: flush cache")
	}

	printSummary(w, c.Output.Path, sum, c.Pipeline.MissingLimit)
	return nil
}

// pipelineDelay maps the configured delay to pipeline.Options, where zero
// means the default and a negative value means no pause.
func pipelineDelay(ms int) time.Duration {
	if ms <= 0 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}

func printSummary(w io.Writer, out string, sum *pipeline.Summary, missingLimit int) {
	fmt.Fprintf(w, "Wrote %s with %d peak updates (+ geom rebuild)\n", out, sum.Builder.UpdateCount())
	if len(sum.Missing) == 0 {
		return
	}
	fmt.Fprintf(w, "Missing/Errors (%d):\n", len(sum.Missing))
	shown := sum.Missing
	if missingLimit > 0 && len(shown) > missingLimit {
		shown = shown[:missingLimit]
	}
	for _, m := range shown {
		fmt.Fprintf(w, "  - %s\n", m)
	}
}
