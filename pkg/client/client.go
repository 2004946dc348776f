// Package client provides the PokeAPI HTTP client: request building,
// JSON decoding and error classification for single resources.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pokelookout/poke-lookout/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for PokeAPI client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_requests_total",
		Help: "Total PokeAPI requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokeapi_request_duration_seconds",
		Help:    "PokeAPI request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_errors_total",
		Help: "Total PokeAPI fetch errors by kind",
	}, []string{"kind"})
)

const (
	// DefaultBaseURL is the public PokeAPI v2 root.
	DefaultBaseURL = "https://pokeapi.co/api/v2"

	// DefaultUserAgent identifies this client to PokeAPI.
	DefaultUserAgent = "poke-lookout/0.1.0"

	// DefaultTimeout bounds every request, including reading the body.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxConnections caps open connections to the API host.
	DefaultMaxConnections = 30

	// DefaultMaxIdleConnections caps keep-alive connections kept in the pool.
	DefaultMaxIdleConnections = 30
)

// Record is a decoded PokeAPI response. Its structure is whatever the
// remote service returns.
type Record = map[string]any

// Resource identifies one PokeAPI resource.
type Resource struct {
	// Endpoint is the resource category, e.g. "pokemon".
	Endpoint string

	// ID is a numeric id or a name.
	ID string
}

// String returns "endpoint/id".
func (r Resource) String() string {
	return r.Endpoint + "/" + r.ID
}

// Client is the PokeAPI client. It owns one connection pool.
type Client struct {
	httpClient *http.Client
	transport  *http.Transport
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, resources live at {BaseURL}/{endpoint}/{id}.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout applies to each request.
	Timeout time.Duration

	// Pool limits
	MaxConnections     int
	MaxIdleConnections int

	// StatusLevel is the level of the per-response status line.
	StatusLevel zerolog.Level

	// Logger receives client events. The zero value discards them.
	Logger zerolog.Logger
}

// DefaultConfig returns the configuration for the public PokeAPI.
func DefaultConfig(logger zerolog.Logger) Config {
	return Config{
		BaseURL:            DefaultBaseURL,
		UserAgent:          DefaultUserAgent,
		Timeout:            DefaultTimeout,
		MaxConnections:     DefaultMaxConnections,
		MaxIdleConnections: DefaultMaxIdleConnections,
		StatusLevel:        zerolog.InfoLevel,
		Logger:             logger,
	}
}

// New creates a new PokeAPI client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.MaxConnections <= 0 || cfg.MaxIdleConnections <= 0 {
		return nil, fmt.Errorf("connection limits must be > 0 (got %d/%d)",
			cfg.MaxConnections, cfg.MaxIdleConnections)
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxConnsPerHost:     cfg.MaxConnections,
		MaxIdleConns:        cfg.MaxIdleConnections,
		MaxIdleConnsPerHost: cfg.MaxIdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		transport: transport,
		baseURL:   base,
		config:    cfg,
		logger:    logging.Component(cfg.Logger, "pokeapi-client"),
	}, nil
}

// URL returns the absolute URL of a resource.
func (c *Client) URL(res Resource) string {
	return c.baseURL.String() + "/" + url.PathEscape(res.Endpoint) + "/" + url.PathEscape(res.ID)
}

// NewRequest builds the GET request for a resource.
func (c *Client) NewRequest(ctx context.Context, res Resource) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(res), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// Fetch retrieves {BaseURL}/{endpoint}/{idOrName} and decodes the body.
func (c *Client) Fetch(ctx context.Context, endpoint, idOrName string) (Record, error) {
	req, err := c.NewRequest(ctx, Resource{Endpoint: endpoint, ID: idOrName})
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Do executes a request built by NewRequest and decodes the body.
// The body is returned whatever the status code, as long as it is a JSON
// object. Nothing is retried.
func (c *Client) Do(req *http.Request) (Record, error) {
	res := c.resourceOf(req.URL)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(res.Endpoint).Observe(time.Since(startTime).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(res.Endpoint, "network_error").Inc()
		return nil, c.fail(newFetchError(KindTransport, res, 0, err))
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(res.Endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.WithLevel(c.config.StatusLevel).
		Str("endpoint", res.Endpoint).
		Str("id", res.ID).
		Int("status", resp.StatusCode).
		Msg("get_data(poke_api): response received")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(newFetchError(KindTransport, res, resp.StatusCode, fmt.Errorf("read body: %w", err)))
	}

	record, err := decodeRecord(body)
	if err != nil {
		return nil, c.fail(newFetchError(classifyBody(resp.StatusCode), res, resp.StatusCode, err))
	}

	return record, nil
}

// Close releases idle pooled connections.
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) fail(err *FetchError) error {
	errorsTotal.WithLabelValues(string(err.Kind)).Inc()
	c.logger.Debug().
		Str("endpoint", err.Resource.Endpoint).
		Str("id", err.Resource.ID).
		Str("kind", string(err.Kind)).
		Err(err.Err).
		Msg("Fetch failed")
	return err
}

// resourceOf recovers the resource from a request URL built by URL.
func (c *Client) resourceOf(u *url.URL) Resource {
	rest := strings.TrimPrefix(u.EscapedPath(), c.baseURL.EscapedPath())
	rest = strings.Trim(rest, "/")

	endpoint, id, _ := strings.Cut(rest, "/")
	if unescaped, err := url.PathUnescape(endpoint); err == nil {
		endpoint = unescaped
	}
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	return Resource{Endpoint: endpoint, ID: id}
}

func decodeRecord(body []byte) (Record, error) {
	var record Record
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if record == nil {
		return nil, ErrNotObject
	}
	return record, nil
}
