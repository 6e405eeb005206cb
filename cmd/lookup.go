package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/peak-enrich/internal/config"
	"github.com/sells-group/peak-enrich/internal/model"
	"github.com/sells-group/peak-enrich/internal/resolve"
)

var (
	lookupSlug    string
	lookupNoCache bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <name>",
	Short: "Resolve a single peak name and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runLookup(ctx, cfg, args[0], lookupSlug, lookupNoCache, cmd.OutOrStdout())
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupSlug, "slug", "", "apply the search override for this slug")
	lookupCmd.Flags().BoolVar(&lookupNoCache, "no-cache", false, "use a throwaway in-memory cache")
	rootCmd.AddCommand(lookupCmd)
}

type lookupResult struct {
	Search   string          `json:"search"`
	Found    bool            `json:"found"`
	Location *model.Location `json:"location,omitempty"`
}

func runLookup(ctx context.Context, c *config.Config, name, slug string, noCache bool, w io.Writer) error {
	if err := c.Validate("lookup"); err != nil {
		return err
	}

	text := name
	if slug != "" {
		overrides, err := resolve.LoadOverrides(c.Pipeline.OverridesFile)
		if err != nil {
			return err
		}
		text = overrides.SearchText(slug, name)
	}

	store, err := openCache(ctx, c, noCache)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	r := resolve.New(newWikidataClient(c), store, resolverOptions(c))
	loc, err := r.Resolve(ctx, text)
	if err != nil && !errors.Is(err, resolve.ErrNotFound) {
		return eris.Wrapf(err, "lookup %q", text)
	}

	if err := store.Flush(ctx); err != nil {
		return eris.Wrap(err, "lookup: flush cache")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(lookupResult{Search: text, Found: loc != nil, Location: loc}); err != nil {
		return eris.Wrap(err, "lookup: encode result")
	}
	if loc == nil {
		return eris.Wrapf(resolve.ErrNotFound, "lookup %q", text)
	}
	return nil
}
