// Command poke-batch fetches a contiguous id range from PokeAPI and writes
// one JSON record per line to stdout.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pokelookout/poke-lookout/internal/config"
	"github.com/pokelookout/poke-lookout/pkg/batch"
	"github.com/pokelookout/poke-lookout/pkg/client"
	"github.com/pokelookout/poke-lookout/pkg/logging"
	"github.com/pokelookout/poke-lookout/pkg/metrics"
	"github.com/pokelookout/poke-lookout/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := logging.Setup(cfg.LoggingConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup logging: %v\n", err)
		os.Exit(1)
	}

	app := newApp(cfg, logger, os.Stdout)
	if err := app.Run(os.Args); err != nil {
		logging.Critical(&logger).Msgf("batch(poke_api): unexpected error - %v", err)
		fmt.Fprintln(os.Stderr, err)
		closer.Close()
		os.Exit(1)
	}

	closer.Close()
}

func newApp(cfg *config.Config, logger zerolog.Logger, stdout io.Writer) *cli.App {
	app := &cli.App{
		Name:   "poke-batch",
		Usage:  "fetch a range of PokeAPI records by numeric id",
		Writer: stdout,
	}

	app.Flags = []cli.Flag{
		&cli.IntFlag{
			Name:  "min",
			Usage: "first id of the range (inclusive)",
			Value: 1,
		},
		&cli.IntFlag{
			Name:     "max",
			Usage:    "end of the range (exclusive)",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "endpoint",
			Usage: "PokeAPI endpoint to fetch",
			Value: batch.DefaultEndpoint,
		},
		&cli.BoolFlag{
			Name:  "sequential",
			Usage: "fetch one id at a time instead of all at once",
		},
		&cli.StringFlag{
			Name:  "redis-url",
			Usage: "also export records to this Redis instance",
			Value: cfg.RedisURL,
		},
		&cli.DurationFlag{
			Name:  "redis-ttl",
			Usage: "expiry of exported records (0 keeps them)",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "write Prometheus metrics to this file when done",
		},
	}

	app.Action = func(cctx *cli.Context) error {
		logger.Info().Msg("batch(poke_api) : start running")
		defer func() {
			logger.Info().Msg("batch(poke_api) : end running")
		}()

		mode := batch.ModeConcurrent
		if cctx.Bool("sequential") {
			mode = batch.ModeSequential
		}

		bcfg := batch.DefaultConfig(cfg.ClientConfig(logger))
		bcfg.Endpoint = cctx.String("endpoint")
		bcfg.MaxConnections = cfg.MaxConnections
		bcfg.MaxIdleConnections = cfg.MaxIdleConnections
		bcfg.Timeout = cfg.Timeout

		minID, maxID := cctx.Int("min"), cctx.Int("max")
		records, err := batch.NewRequester(bcfg).FetchRange(cctx.Context, mode, minID, maxID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cctx.App.Writer)
		for _, record := range records {
			if err := enc.Encode(record); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
		}

		if redisURL := cctx.String("redis-url"); redisURL != "" {
			if err := export(cctx, redisURL, bcfg.Endpoint, minID, records); err != nil {
				return err
			}
			logger.Info().
				Int("records", len(records)).
				Msg("batch(poke_api): exported to redis")
		}

		if path := cctx.String("metrics-file"); path != "" {
			if err := metrics.WriteTextfile(path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("batch(poke_api): metrics not written")
			}
		}

		return nil
	}

	return app
}

func export(cctx *cli.Context, redisURL, endpoint string, minID int, records []client.Record) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	s := store.New(redisClient, store.WithTTL(cctx.Duration("redis-ttl")))
	if err := s.SaveBatch(cctx.Context, endpoint, minID, records); err != nil {
		return fmt.Errorf("export records: %w", err)
	}
	return nil
}
