package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/peak-enrich/internal/cache"
	"github.com/sells-group/peak-enrich/internal/config"
	"github.com/sells-group/peak-enrich/internal/resilience"
	"github.com/sells-group/peak-enrich/internal/resolve"
	"github.com/sells-group/peak-enrich/pkg/wikidata"
)

func newWikidataClient(c *config.Config) wikidata.Client {
	policy := resilience.FromRetryConfig(c.Retry.MaxAttempts, c.Retry.BackoffMs, c.Retry.RateLimitBackoffMs)
	return wikidata.NewClient(
		wikidata.WithEndpoints(c.Wikidata.SparqlURL, c.Wikidata.SearchURL),
		wikidata.WithUserAgent(c.Wikidata.UserAgent),
		wikidata.WithTimeout(time.Duration(c.Wikidata.TimeoutSecs)*time.Second),
		wikidata.WithRateLimit(c.Wikidata.RateLimitRPS),
		wikidata.WithRetryPolicy(policy),
	)
}

func resolverOptions(c *config.Config) resolve.Options {
	return resolve.Options{
		Lang:        c.Wikidata.Lang,
		LabelLangs:  c.Wikidata.LabelLangs,
		LabelLimit:  c.Wikidata.LabelLimit,
		SearchLimit: c.Wikidata.SearchLimit,
	}
}

// openCache opens the configured store, or an in-memory one when noCache is set.
func openCache(ctx context.Context, c *config.Config, noCache bool) (cache.Store, error) {
	cc := c.Cache
	if noCache {
		cc.Driver = "memory"
	}
	if cc.Driver == "postgres" && cc.DatabaseURL == "" {
		cc.DatabaseURL = c.Source.DatabaseURL
	}
	st, err := cache.Open(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "open cache")
	}
	return st, nil
}
