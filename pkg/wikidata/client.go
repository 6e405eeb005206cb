// Package wikidata queries the Wikidata SPARQL endpoint and entity search API.
package wikidata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/peak-enrich/internal/resilience"
)

const (
	defaultSparqlURL = "https://query.wikidata.org/sparql"
	defaultSearchURL = "https://www.wikidata.org/w/api.php"
	defaultUserAgent = "PeakGuideCoordsBot/1.1 (local script; contact: none)"
	sparqlAccept     = "application/sparql-results+json"
)

// Client talks to the Wikidata query and search endpoints.
type Client interface {
	// Sparql runs a SELECT query and returns its result bindings.
	Sparql(ctx context.Context, query string) ([]Binding, error)

	// Search runs wbsearchentities and returns the matching entities.
	Search(ctx context.Context, text, lang string, limit int) ([]SearchHit, error)
}

// Value is one bound variable in a SPARQL result row.
type Value struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Binding is a single SPARQL result row keyed by variable name.
type Binding map[string]Value

// Get returns the value bound to name and whether it is present.
func (b Binding) Get(name string) (string, bool) {
	v, ok := b[name]
	if !ok {
		return "", false
	}
	return v.Value, true
}

// SearchHit is an entity returned by wbsearchentities.
type SearchHit struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	ConceptURI  string `json:"concepturi,omitempty"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}

type searchResponse struct {
	Search []SearchHit `json:"search"`
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithEndpoints overrides the SPARQL and search endpoint URLs. Empty values keep the defaults.
func WithEndpoints(sparqlURL, searchURL string) Option {
	return func(c *client) {
		if sparqlURL != "" {
			c.sparqlURL = sparqlURL
		}
		if searchURL != "" {
			c.searchURL = searchURL
		}
	}
}

// WithUserAgent sets the User-Agent header. Wikidata rejects anonymous agents.
func WithUserAgent(ua string) Option {
	return func(c *client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit sets the requests-per-second rate limit shared by both endpoints.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetryPolicy sets the retry policy applied to every request.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *client) {
		c.retry = p
	}
}

type client struct {
	httpClient *http.Client
	sparqlURL  string
	searchURL  string
	userAgent  string
	limiter    *rate.Limiter
	retry      resilience.Policy
}

// NewClient creates a Wikidata Client with the given options.
func NewClient(opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 45 * time.Second},
		sparqlURL:  defaultSparqlURL,
		searchURL:  defaultSearchURL,
		userAgent:  defaultUserAgent,
		limiter:    rate.NewLimiter(5, 5),
		retry:      resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("wikidata", "request")
	}
	return c
}

// Sparql implements Client.
func (c *client) Sparql(ctx context.Context, query string) ([]Binding, error) {
	params := url.Values{
		"query":  {query},
		"format": {"json"},
	}
	var resp sparqlResponse
	if err := c.getJSON(ctx, c.sparqlURL, params, &resp); err != nil {
		return nil, eris.Wrap(err, "wikidata: sparql")
	}
	return resp.Results.Bindings, nil
}

// Search implements Client.
func (c *client) Search(ctx context.Context, text, lang string, limit int) ([]SearchHit, error) {
	params := url.Values{
		"action":   {"wbsearchentities"},
		"format":   {"json"},
		"language": {lang},
		"uselang":  {lang},
		"search":   {text},
		"limit":    {strconv.Itoa(limit)},
	}
	var resp searchResponse
	if err := c.getJSON(ctx, c.searchURL, params, &resp); err != nil {
		return nil, eris.Wrap(err, "wikidata: search")
	}
	return resp.Search, nil
}

// getJSON issues a rate-limited GET with retries and decodes the body into out.
func (c *client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	reqURL := endpoint + "?" + params.Encode()

	return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "wikidata: rate limit")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return eris.Wrap(err, "wikidata: build request")
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", sparqlAccept)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "wikidata: request"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resilience.StatusError("wikidata", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "wikidata: read body"), resp.StatusCode)
		}

		// A truncated body from an overloaded endpoint decodes as garbage; retry it.
		if err := json.Unmarshal(body, out); err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "wikidata: parse response"), resp.StatusCode)
		}
		return nil
	})
}
