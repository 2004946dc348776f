// Command poke-lookout reads a pokemon name or id from stdin and prints a
// summary of the matching PokeAPI record.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/pkg/errors"
	"github.com/pokelookout/poke-lookout/internal/config"
	"github.com/pokelookout/poke-lookout/pkg/client"
	"github.com/pokelookout/poke-lookout/pkg/logging"
	"github.com/pokelookout/poke-lookout/pkg/summary"
	"github.com/rs/zerolog"
)

const (
	prompt          = "Enter a pokemon name or id: "
	notFoundMessage = "Sorry, pokemon not found. Please check the spelling and try again."
	pokemonEndpoint = "pokemon"
)

// fetcher is the part of the PokeAPI client used by a lookup.
type fetcher interface {
	Fetch(ctx context.Context, endpoint, idOrName string) (client.Record, error)
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

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

	os.Exit(execute(logger, closer, func() error {
		c, err := client.New(cfg.ClientConfig(logger))
		if err != nil {
			return fmt.Errorf("create client: %w", err)
		}
		defer c.Close()

		return run(context.Background(), c, os.Stdin, os.Stdout, logger)
	}))
}

// execute runs fn under guard and closes the log file on every path,
// including a re-raised panic.
func execute(logger zerolog.Logger, closer io.Closer, fn func() error) int {
	defer closer.Close()
	return guard(logger, fn)
}

// run performs one interactive lookup. Lookups that end in the not-found
// message return nil; transport failures and input errors are returned.
func run(ctx context.Context, f fetcher, in io.Reader, out io.Writer, logger zerolog.Logger) error {
	logger.Info().Msg("main(poke_api) : start running")
	defer func() {
		logger.Info().Msg("main(poke_api) : end running")
	}()

	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return fmt.Errorf("read identifier: %w", err)
	}
	idOrName := strings.ToLower(strings.TrimSpace(line))

	text, err := lookup(ctx, f, idOrName)
	if err != nil {
		if client.IsTransport(err) {
			return err
		}
		fmt.Fprintln(out, notFoundMessage)
		logging.Critical(&logger).Msgf("main(poke_api): unexpected error - %v", err)
		return nil
	}

	fmt.Fprintln(out, text)
	return nil
}

func lookup(ctx context.Context, f fetcher, idOrName string) (string, error) {
	record, err := f.Fetch(ctx, pokemonEndpoint, idOrName)
	if err != nil {
		return "", err
	}
	return summary.Summarize(record)
}

// guard is the top-level handler. Errors and panics escaping fn are logged at
// critical severity with a flattened stack trace; panics are then re-raised.
func guard(logger zerolog.Logger, fn func() error) int {
	defer func() {
		if r := recover(); r != nil {
			logging.Critical(&logger).Msgf("main(poke_api): unexpected error - %v %s",
				r, flatten(string(debug.Stack())))
			panic(r)
		}
	}()

	if err := fn(); err != nil {
		logging.Critical(&logger).Msgf("main(poke_api): unexpected error - %v %s",
			err, flatten(stackOf(err)))
		return 1
	}
	return 0
}

// stackOf returns the first stack recorded in err's chain, or the current stack.
func stackOf(err error) string {
	var st stackTracer
	if !errors.As(err, &st) {
		st = errors.WithStack(err).(stackTracer)
	}
	return fmt.Sprintf("%+v", st.StackTrace())
}

// flatten joins a multi-line trace into one log line.
func flatten(trace string) string {
	trace = strings.TrimSpace(trace)
	trace = strings.ReplaceAll(trace, "\n\t", " ")
	return strings.ReplaceAll(trace, "\n", " - ")
}
