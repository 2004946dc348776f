package batch

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pokelookout/poke-lookout/pkg/client"
	"github.com/pokelookout/poke-lookout/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Prometheus metrics for batch operations.
var (
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_batches_total",
		Help: "Total batch fetches by mode and result",
	}, []string{"mode", "result"})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokeapi_batch_duration_seconds",
		Help:    "Batch fetch duration in seconds by mode",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"mode"})

	batchRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_batch_records_total",
		Help: "Total records returned by successful batch fetches",
	}, []string{"mode"})
)

// Mode selects how a range is fetched.
type Mode string

const (
	// ModeConcurrent submits every request of the range at once.
	ModeConcurrent Mode = "concurrent"

	// ModeSequential issues one request at a time in id order.
	ModeSequential Mode = "sequential"
)

// DefaultEndpoint is the endpoint fetched when none is configured.
const DefaultEndpoint = "pokemon"

// Config holds batch requester configuration.
type Config struct {
	// Client is the base client configuration. Pool limits and timeout
	// are overridden by the fields below for every batch.
	Client client.Config

	// Endpoint whose numeric ids are fetched (default: "pokemon").
	Endpoint string

	// MaxConnections caps open connections during one batch.
	MaxConnections int

	// MaxIdleConnections caps keep-alive connections during one batch.
	MaxIdleConnections int

	// Timeout applies to every request of a batch.
	Timeout time.Duration

	// Status line levels per path.
	ConcurrentStatusLevel zerolog.Level
	SequentialStatusLevel zerolog.Level
}

// DefaultConfig returns the batch configuration used against PokeAPI.
func DefaultConfig(base client.Config) Config {
	return Config{
		Client:                base,
		Endpoint:              DefaultEndpoint,
		MaxConnections:        client.DefaultMaxConnections,
		MaxIdleConnections:    client.DefaultMaxIdleConnections,
		Timeout:               client.DefaultTimeout,
		ConcurrentStatusLevel: zerolog.InfoLevel,
		SequentialStatusLevel: zerolog.DebugLevel,
	}
}

// Requester fetches id ranges.
type Requester struct {
	config Config
	logger zerolog.Logger
}

// NewRequester creates a new batch requester.
func NewRequester(config Config) *Requester {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.MaxConnections <= 0 {
		config.MaxConnections = client.DefaultMaxConnections
	}
	if config.MaxIdleConnections <= 0 {
		config.MaxIdleConnections = client.DefaultMaxIdleConnections
	}
	if config.Timeout <= 0 {
		config.Timeout = client.DefaultTimeout
	}

	return &Requester{
		config: config,
		logger: logging.Component(config.Client.Logger, "batch"),
	}
}

// Resources returns the resources of endpoint for ids in [minID, maxID).
func Resources(endpoint string, minID, maxID int) []client.Resource {
	if maxID <= minID {
		return []client.Resource{}
	}

	resources := make([]client.Resource, 0, maxID-minID)
	for id := minID; id < maxID; id++ {
		resources = append(resources, client.Resource{Endpoint: endpoint, ID: strconv.Itoa(id)})
	}
	return resources
}

// FetchRange fetches [minID, maxID) using the given mode.
func (r *Requester) FetchRange(ctx context.Context, mode Mode, minID, maxID int) ([]client.Record, error) {
	switch mode {
	case ModeConcurrent:
		return r.FetchRangeConcurrent(ctx, minID, maxID)
	case ModeSequential:
		return r.FetchRangeSequential(ctx, minID, maxID)
	default:
		return nil, fmt.Errorf("unknown batch mode %q", mode)
	}
}

// FetchRangeConcurrent fetches [minID, maxID) with all requests in flight at
// once. The first failure cancels the others and is returned alone.
func (r *Requester) FetchRangeConcurrent(ctx context.Context, minID, maxID int) (records []client.Record, err error) {
	start := time.Now()
	defer r.observe(ModeConcurrent, start, &records, &err)

	c, err := r.open(r.config.ConcurrentStatusLevel)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	resources := Resources(r.config.Endpoint, minID, maxID)

	r.logger.Info().
		Str("endpoint", r.config.Endpoint).
		Int("min_id", minID).
		Int("max_id", maxID).
		Msg("get_pokemon_data(poke_api): starting concurrent fetch")

	g, gctx := errgroup.WithContext(ctx)

	requests := make([]*http.Request, len(resources))
	for i, res := range resources {
		req, err := c.NewRequest(gctx, res)
		if err != nil {
			return nil, fmt.Errorf("build request for %s: %w", res, err)
		}
		requests[i] = req
	}

	// Each goroutine owns the slot of its source index.
	results := make([]client.Record, len(requests))
	for i, req := range requests {
		g.Go(func() error {
			record, err := c.Do(req)
			if err != nil {
				return err
			}
			results[i] = record
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.logger.Error().
			Err(err).
			Int("min_id", minID).
			Int("max_id", maxID).
			Msg("get_pokemon_data(poke_api): concurrent fetch failed")
		return nil, fmt.Errorf("fetch range [%d, %d): %w", minID, maxID, err)
	}

	return results, nil
}

// FetchRangeSequential fetches [minID, maxID) one request at a time in id order.
func (r *Requester) FetchRangeSequential(ctx context.Context, minID, maxID int) (records []client.Record, err error) {
	start := time.Now()
	defer r.observe(ModeSequential, start, &records, &err)

	c, err := r.open(r.config.SequentialStatusLevel)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	resources := Resources(r.config.Endpoint, minID, maxID)
	results := make([]client.Record, 0, len(resources))

	for _, res := range resources {
		record, err := c.Fetch(ctx, res.Endpoint, res.ID)
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("id", res.ID).
				Msg("get_pokemon_data_sync(poke_api): sequential fetch failed")
			return nil, fmt.Errorf("fetch range [%d, %d): %w", minID, maxID, err)
		}
		results = append(results, record)
	}

	return results, nil
}

// open creates the client whose pool lives for one batch.
func (r *Requester) open(statusLevel zerolog.Level) (*client.Client, error) {
	cfg := r.config.Client
	cfg.MaxConnections = r.config.MaxConnections
	cfg.MaxIdleConnections = r.config.MaxIdleConnections
	cfg.Timeout = r.config.Timeout
	cfg.StatusLevel = statusLevel

	c, err := client.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

func (r *Requester) observe(mode Mode, start time.Time, records *[]client.Record, err *error) {
	duration := time.Since(start)
	batchDuration.WithLabelValues(string(mode)).Observe(duration.Seconds())

	if *err != nil {
		batchesTotal.WithLabelValues(string(mode), "error").Inc()
		return
	}

	batchesTotal.WithLabelValues(string(mode), "success").Inc()
	batchRecords.WithLabelValues(string(mode)).Add(float64(len(*records)))

	r.logger.Info().
		Str("mode", string(mode)).
		Int("records", len(*records)).
		Dur("duration", duration).
		Msg("Fetch complete")
}
