// Package store exports fetched PokeAPI records to Redis.
//
// Records are written as JSON strings under "pokeapi:{endpoint}:{id}". The
// fetch path never reads them back; the store is an export target for bulk
// runs, consumed by whatever reads the Redis instance afterwards.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pokelookout/poke-lookout/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotStored indicates no record exists for the requested resource.
	ErrNotStored = errors.New("record not stored")

	storeWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_store_writes_total",
		Help: "Total records written to the Redis export by result",
	}, []string{"result"})
)

// DefaultPrefix is the first key segment.
const DefaultPrefix = "pokeapi"

// Store writes records to Redis.
type Store struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix replaces the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithTTL expires exported records after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// New creates a store backed by redisClient.
func New(redisClient *redis.Client, opts ...Option) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}

	s := &Store{
		redis:  redisClient,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the Redis key of a resource.
func (s *Store) Key(res client.Resource) string {
	return s.prefix + ":" + res.Endpoint + ":" + res.ID
}

// SaveBatch writes records, where records[i] belongs to id minID+i, in one pipeline.
func (s *Store) SaveBatch(ctx context.Context, endpoint string, minID int, records []client.Record) error {
	if len(records) == 0 {
		return nil
	}

	pipe := s.redis.Pipeline()
	for i, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			storeWrites.WithLabelValues("error").Add(float64(len(records)))
			return fmt.Errorf("marshal record %d: %w", minID+i, err)
		}
		res := client.Resource{Endpoint: endpoint, ID: strconv.Itoa(minID + i)}
		pipe.Set(ctx, s.Key(res), data, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		storeWrites.WithLabelValues("error").Add(float64(len(records)))
		return fmt.Errorf("redis pipeline: %w", err)
	}

	storeWrites.WithLabelValues("success").Add(float64(len(records)))
	return nil
}

// Load reads one exported record.
func (s *Store) Load(ctx context.Context, res client.Resource) (client.Record, error) {
	data, err := s.redis.Get(ctx, s.Key(res)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotStored
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var record client.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", res, err)
	}
	return record, nil
}
