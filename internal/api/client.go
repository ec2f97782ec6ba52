// Package api implements the Vivacity traffic-sensor API client.
//
// The vendor API limits count and speed queries to 7 days and a bounded
// number of countlines per request, so every fetch fans out over the
// Cartesian product of identifier chunks and date sub-ranges. Failed
// sub-batches are skipped rather than failing the whole call: for long
// multi-week queries partial data beats total failure.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the production Vivacity API endpoint.
	DefaultBaseURL = "https://api.vivacitylabs.com"

	// DefaultTimeout bounds a single sub-batch request.
	DefaultTimeout = 120 * time.Second

	// DefaultIDBatchSize is the maximum countline identifiers per request.
	DefaultIDBatchSize = 50

	// DefaultMaxBatchDays is the maximum date span per request.
	DefaultMaxBatchDays = 7

	// DefaultTimeBucket is the count aggregation bucket.
	DefaultTimeBucket = "1h"

	// DefaultSpeedBucket is the speed aggregation bucket. Daily buckets keep
	// the speed fan-out cheap; speed is only joined at day granularity anyway.
	DefaultSpeedBucket = "24h"

	timestampFormat = "2006-01-02T15:04:05Z"
	userAgent       = "vivacity-go/1.0"
	envKeyPrefix    = "VIVACITY_"
)

// ErrMissingAPIKey is returned by NewClient when no credential can be
// resolved for the requested region.
var ErrMissingAPIKey = errors.New("no Vivacity API key configured")

// ClientConfig holds construction options for a Client.
type ClientConfig struct {
	RegionCode     string        // region the credential belongs to, e.g. "wyca"
	APIKey         string        // optional override; defaults to VIVACITY_<REGION> env var
	BaseURL        string
	Timeout        time.Duration
	BatchSize      int     // countline identifiers per request
	MaxBatchDays   int     // date span per request, in days
	Concurrency    int     // concurrent sub-batch requests
	RateLimit      float64 // outbound requests per second
	RateLimitBurst int
	Logger         *logrus.Logger
}

// DefaultClientConfig returns a ClientConfig with production defaults.
func DefaultClientConfig(regionCode string) ClientConfig {
	return ClientConfig{
		RegionCode:     regionCode,
		BaseURL:        DefaultBaseURL,
		Timeout:        DefaultTimeout,
		BatchSize:      DefaultIDBatchSize,
		MaxBatchDays:   DefaultMaxBatchDays,
		Concurrency:    4,
		RateLimit:      5.0,
		RateLimitBurst: 10,
	}
}

// Client talks to the Vivacity API for a single region. API keys are
// region-specific, so one Client serves exactly one region.
type Client struct {
	regionCode string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger

	batchSize   int
	maxSpan     time.Duration
	concurrency int
}

// NewClient builds a Client for cfg.RegionCode. When cfg.APIKey is empty the
// credential is resolved from the VIVACITY_<REGION> environment variable;
// if none exists the error lists the VIVACITY_* variables that are set, to
// aid debugging a misconfigured region.
func NewClient(cfg ClientConfig) (*Client, error) {
	region := strings.ToLower(cfg.RegionCode)

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(envKeyPrefix + strings.ToUpper(region))
	}
	if apiKey == "" {
		return nil, fmt.Errorf(
			"%w for region %q: set %s%s (available: %s)",
			ErrMissingAPIKey, region,
			envKeyPrefix, strings.ToUpper(region),
			strings.Join(availableKeyVars(), ", "),
		)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultIDBatchSize
	}
	if cfg.MaxBatchDays <= 0 {
		cfg.MaxBatchDays = DefaultMaxBatchDays
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5.0
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &Client{
		regionCode:  region,
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		logger:      cfg.Logger,
		batchSize:   cfg.BatchSize,
		maxSpan:     time.Duration(cfg.MaxBatchDays) * 24 * time.Hour,
		concurrency: cfg.Concurrency,
	}, nil
}

// Region returns the lowercased region code this client is bound to.
func (c *Client) Region() string {
	return c.regionCode
}

// availableKeyVars lists configured VIVACITY_* credential variables,
// excluding the non-credential ones.
func availableKeyVars() []string {
	var vars []string
	for _, kv := range os.Environ() {
		name := strings.SplitN(kv, "=", 2)[0]
		if !strings.HasPrefix(name, envKeyPrefix) {
			continue
		}
		if name == "VIVACITY_BASE_URL" || name == "VIVACITY_TIMEOUT" {
			continue
		}
		vars = append(vars, name)
	}
	sort.Strings(vars)
	return vars
}

// getJSON issues one authenticated GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("x-vivacity-api-key", c.apiKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// rangeParams builds the shared query parameters for count and speed
// requests: comma-joined identifiers and ISO-8601 UTC bounds.
func rangeParams(ids []string, window DateBatch, timeBucket string) url.Values {
	params := url.Values{}
	params.Set("countline_ids", strings.Join(ids, ","))
	params.Set("from", window.From.UTC().Format(timestampFormat))
	params.Set("to", window.To.UTC().Format(timestampFormat))
	params.Set("time_bucket", timeBucket)
	return params
}

// subBatchFunc fetches and accumulates one sub-batch.
type subBatchFunc func(ctx context.Context, ids []string, window DateBatch) error

// runSubBatches calls fn once per (identifier chunk x date sub-range) with
// bounded concurrency. A failing sub-batch is logged, counted, and skipped so
// its siblings still contribute; no sub-batch is retried.
func (c *Client) runSubBatches(ctx context.Context, endpoint string, ids []string, start, end time.Time, fn subBatchFunc) {
	idBatches := ChunkIDs(ids, c.batchSize)
	windows := BatchDateRange(start, end, c.maxSpan)

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for _, chunk := range idBatches {
		for _, window := range windows {
			chunk, window := chunk, window
			g.Go(func() error {
				SubBatchRequests.WithLabelValues(endpoint).Inc()
				if err := fn(ctx, chunk, window); err != nil {
					SubBatchSkips.WithLabelValues(endpoint).Inc()
					c.logger.WithError(err).WithFields(logrus.Fields{
						"endpoint":   endpoint,
						"region":     c.regionCode,
						"from":       window.From,
						"to":         window.To,
						"countlines": len(chunk),
					}).Warn("Skipping failed sub-batch")
				}
				return nil
			})
		}
	}

	// Goroutines never return errors; Wait only synchronizes.
	_ = g.Wait()
}

// collector is an append-only, mutex-guarded record accumulator shared by
// concurrent sub-batches.
type collector[T any] struct {
	mu      sync.Mutex
	records []T
}

func (a *collector[T]) append(records []T) {
	a.mu.Lock()
	a.records = append(a.records, records...)
	a.mu.Unlock()
}
