package batch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pokelookout/poke-lookout/internal/testutil"
	"github.com/pokelookout/poke-lookout/pkg/client"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func newTestRequester(baseURL string, logger zerolog.Logger) *Requester {
	base := client.DefaultConfig(logger)
	base.BaseURL = baseURL

	cfg := DefaultConfig(base)
	cfg.Timeout = 5 * time.Second
	return NewRequester(cfg)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(client.DefaultConfig(zerolog.Nop()))

	if cfg.Endpoint != "pokemon" {
		t.Errorf("Endpoint = %q, want pokemon", cfg.Endpoint)
	}
	if cfg.MaxConnections != 30 || cfg.MaxIdleConnections != 30 {
		t.Errorf("pool limits = %d/%d, want 30/30", cfg.MaxConnections, cfg.MaxIdleConnections)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cfg.Timeout)
	}
	if cfg.SequentialStatusLevel >= cfg.ConcurrentStatusLevel {
		t.Errorf("sequential status level %v should be below concurrent %v",
			cfg.SequentialStatusLevel, cfg.ConcurrentStatusLevel)
	}
}

func TestNewRequester_Defaults(t *testing.T) {
	r := NewRequester(Config{})

	if r.config.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %q, want %q", r.config.Endpoint, DefaultEndpoint)
	}
	if r.config.MaxConnections != client.DefaultMaxConnections {
		t.Errorf("MaxConnections = %d", r.config.MaxConnections)
	}
	if r.config.Timeout != client.DefaultTimeout {
		t.Errorf("Timeout = %v", r.config.Timeout)
	}
}

func TestResources(t *testing.T) {
	tests := []struct {
		name    string
		minID   int
		maxID   int
		wantIDs []string
	}{
		{"three ids", 1, 4, []string{"1", "2", "3"}},
		{"single id", 25, 26, []string{"25"}},
		{"empty range", 5, 5, []string{}},
		{"inverted range", 9, 3, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resources := Resources("pokemon", tt.minID, tt.maxID)
			if resources == nil {
				t.Fatal("Resources() returned nil")
			}

			ids := make([]string, len(resources))
			for i, res := range resources {
				if res.Endpoint != "pokemon" {
					t.Errorf("Endpoint = %q", res.Endpoint)
				}
				ids[i] = res.ID
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestFetchRange_OrderAndLength(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()
	mock.SetPokemonRange(1, 21)

	// Early ids answer last so completion order is the reverse of submission order.
	for id := 1; id <= 5; id++ {
		resp := testutil.NewJSONResponse(fmt.Sprintf(`{"id": %d, "name": "pokemon-%d"}`, id, id))
		resp.Delay = time.Duration(6-id) * 40 * time.Millisecond
		mock.SetResponse(testutil.ResourcePath("pokemon", fmt.Sprint(id)), resp)
	}

	r := newTestRequester(mock.BaseURL(), zerolog.Nop())

	for _, mode := range []Mode{ModeConcurrent, ModeSequential} {
		t.Run(string(mode), func(t *testing.T) {
			records, err := r.FetchRange(context.Background(), mode, 1, 21)
			if err != nil {
				t.Fatalf("FetchRange() error = %v", err)
			}

			if len(records) != 20 {
				t.Fatalf("len(records) = %d, want 20", len(records))
			}
			for i, record := range records {
				if record["id"] != float64(1+i) {
					t.Errorf("records[%d].id = %v, want %d", i, record["id"], 1+i)
				}
			}
		})
	}
}

func TestFetchRange_PathsAreEquivalent(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()
	mock.SetPokemonRange(10, 40)

	r := newTestRequester(mock.BaseURL(), zerolog.Nop())
	ctx := context.Background()

	concurrent, err := r.FetchRangeConcurrent(ctx, 10, 40)
	if err != nil {
		t.Fatalf("FetchRangeConcurrent() error = %v", err)
	}
	sequential, err := r.FetchRangeSequential(ctx, 10, 40)
	if err != nil {
		t.Fatalf("FetchRangeSequential() error = %v", err)
	}

	if !reflect.DeepEqual(concurrent, sequential) {
		t.Error("concurrent and sequential results differ for the same range")
	}
}

func TestFetchRange_EmptyRange(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()

	r := newTestRequester(mock.BaseURL(), zerolog.Nop())

	for _, mode := range []Mode{ModeConcurrent, ModeSequential} {
		records, err := r.FetchRange(context.Background(), mode, 5, 5)
		if err != nil {
			t.Errorf("%s: unexpected error %v", mode, err)
		}
		if records == nil || len(records) != 0 {
			t.Errorf("%s: records = %v, want empty non-nil", mode, records)
		}
	}
	if mock.RequestCount() != 0 {
		t.Errorf("RequestCount = %d, want 0", mock.RequestCount())
	}
}

func TestFetchRange_UnknownMode(t *testing.T) {
	r := NewRequester(DefaultConfig(client.DefaultConfig(zerolog.Nop())))

	if _, err := r.FetchRange(context.Background(), Mode("parallel"), 1, 2); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestFetchRangeConcurrent_FailureAbortsBatch(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()
	mock.SetPokemonRange(1, 11)
	mock.DropConnection(testutil.ResourcePath("pokemon", "6"))

	r := newTestRequester(mock.BaseURL(), zerolog.Nop())
	before := promtestutil.ToFloat64(batchesTotal.WithLabelValues("concurrent", "error"))

	records, err := r.FetchRangeConcurrent(context.Background(), 1, 11)
	if err == nil {
		t.Fatal("Expected error when one request fails")
	}
	if records != nil {
		t.Errorf("Expected no partial results, got %d records", len(records))
	}
	if !client.IsTransport(err) {
		t.Errorf("Expected transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "fetch range [1, 11)") {
		t.Errorf("Error = %q, want range context", err.Error())
	}

	after := promtestutil.ToFloat64(batchesTotal.WithLabelValues("concurrent", "error"))
	if after != before+1 {
		t.Errorf("batches_total{error} = %v, want %v", after, before+1)
	}
}

func TestFetchRangeSequential_FailureStopsIteration(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()
	mock.SetPokemonRange(1, 11)
	mock.SetResponse(testutil.ResourcePath("pokemon", "4"), testutil.NewServerErrorResponse())

	r := newTestRequester(mock.BaseURL(), zerolog.Nop())

	records, err := r.FetchRangeSequential(context.Background(), 1, 11)
	if err == nil {
		t.Fatal("Expected error when one request fails")
	}
	if records != nil {
		t.Errorf("Expected no partial results, got %d records", len(records))
	}
	if kind, _ := client.KindOf(err); kind != client.KindDecode {
		t.Errorf("Kind = %q, want decode", kind)
	}
	if mock.RequestCount() != 4 {
		t.Errorf("RequestCount = %d, want 4 (ids after the failure are not requested)", mock.RequestCount())
	}
}

func TestFetchRangeSequential_RequestsInOrder(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()
	mock.SetPokemonRange(3, 8)

	r := newTestRequester(mock.BaseURL(), zerolog.Nop())

	if _, err := r.FetchRangeSequential(context.Background(), 3, 8); err != nil {
		t.Fatalf("FetchRangeSequential() error = %v", err)
	}

	want := []string{
		"/api/v2/pokemon/3", "/api/v2/pokemon/4", "/api/v2/pokemon/5",
		"/api/v2/pokemon/6", "/api/v2/pokemon/7",
	}
	if got := mock.RequestedPaths(); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestFetchRangeConcurrent_BoundedByPool(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()

	var inFlight, peak atomic.Int32
	for id := 1; id <= 12; id++ {
		mock.SetHandler(testutil.ResourcePath("pokemon", fmt.Sprint(id)), func(w http.ResponseWriter, r *http.Request) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			inFlight.Add(-1)
			w.Write([]byte(`{"id": 0}`))
		})
	}

	base := client.DefaultConfig(zerolog.Nop())
	base.BaseURL = mock.BaseURL()
	cfg := DefaultConfig(base)
	cfg.MaxConnections = 3
	cfg.MaxIdleConnections = 3
	r := NewRequester(cfg)

	records, err := r.FetchRangeConcurrent(context.Background(), 1, 13)
	if err != nil {
		t.Fatalf("FetchRangeConcurrent() error = %v", err)
	}
	if len(records) != 12 {
		t.Errorf("len(records) = %d, want 12", len(records))
	}
	if got := peak.Load(); got > 3 {
		t.Errorf("peak in-flight requests = %d, want <= 3", got)
	}
	if got := peak.Load(); got < 2 {
		t.Errorf("peak in-flight requests = %d, want requests to overlap", got)
	}
}

func TestFetchRange_StatusLogLevels(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()
	mock.SetPokemonRange(1, 3)

	buf := &bytes.Buffer{}
	logger := zerolog.New(zerolog.SyncWriter(buf)).Level(zerolog.InfoLevel)
	r := newTestRequester(mock.BaseURL(), logger)

	if _, err := r.FetchRangeSequential(context.Background(), 1, 3); err != nil {
		t.Fatalf("FetchRangeSequential() error = %v", err)
	}
	if strings.Contains(buf.String(), `"status":200`) {
		t.Errorf("sequential status lines should be below info, got %q", buf.String())
	}

	buf.Reset()
	if _, err := r.FetchRangeConcurrent(context.Background(), 1, 3); err != nil {
		t.Fatalf("FetchRangeConcurrent() error = %v", err)
	}
	if got := strings.Count(buf.String(), `"status":200`); got != 2 {
		t.Errorf("concurrent status lines = %d, want 2 (output %q)", got, buf.String())
	}
}

func TestFetchRange_LogsComponent(t *testing.T) {
	mock := testutil.NewMockPokeAPI()
	defer mock.Close()
	mock.SetPokemonRange(1, 3)

	buf := &bytes.Buffer{}
	logger := zerolog.New(zerolog.SyncWriter(buf)).Level(zerolog.InfoLevel)
	r := newTestRequester(mock.BaseURL(), logger)

	if _, err := r.FetchRangeConcurrent(context.Background(), 1, 3); err != nil {
		t.Fatalf("FetchRangeConcurrent() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"component":"batch"`) {
		t.Errorf("batch lines missing component field: %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"component":"pokeapi-client"`) {
		t.Errorf("status lines missing client component field: %q", buf.String())
	}
}
