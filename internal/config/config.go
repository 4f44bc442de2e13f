// Package config parses the command line of the tidbit command.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jacoelho/tidbit/internal/exit"
)

var (
	ErrNoArguments         = errors.New("no arguments provided")
	ErrNoQueryFile         = errors.New("no query file specified")
	ErrTooManyQueryFiles   = errors.New("only one query file can be run at a time")
	ErrNegativeRateLimit   = errors.New("rate limit cannot be negative")
	ErrNegativeConcurrency = errors.New("concurrency cannot be negative")
)

// Config represents the complete configuration for the tidbit command.
type Config struct {
	QueryFile string
	Debug     bool

	// Output is the file results are written to. Empty means stdout.
	Output string

	RateLimit   float64 // Records per second read by streaming queries (0 = unlimited)
	Concurrency int     // Records projected in parallel by in-memory queries
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.QueryFile == "" {
		return ErrNoQueryFile
	}
	if _, err := os.Stat(c.QueryFile); err != nil {
		return fmt.Errorf("query file %s not found: %w", c.QueryFile, err)
	}
	if c.RateLimit < 0 {
		return ErrNegativeRateLimit
	}
	if c.Concurrency < 0 {
		return ErrNegativeConcurrency
	}
	return nil
}

// Parse parses command-line arguments and returns a validated Config.
// If parsing fails or help is requested, returns nil config and exit result.
func Parse(args []string) (*Config, *exit.Result) {
	if len(args) == 0 {
		return nil, exit.Errorf("Error: %v\n\n%s", ErrNoArguments, Usage())
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.Usage = func() {}
	fs.SetOutput(io.Discard)

	var (
		debug       = fs.Bool("debug", false, "Enable debug logging on stderr")
		output      = fs.String("output", "", "Write results to this file instead of stdout")
		rateLimit   = fs.Float64("rate-limit", 0, "Records read per second by streaming queries (0 for unlimited)")
		concurrency = fs.Int("concurrency", 1, "Records projected in parallel by in-memory queries")
	)

	if err := fs.Parse(args[1:]); err != nil {
		if err == flag.ErrHelp {
			return nil, exit.Success(Usage())
		}
		return nil, exit.Errorf("Error: failed to parse arguments: %v\n\n%s", err, Usage())
	}

	files := fs.Args()
	switch {
	case len(files) == 0:
		return nil, exit.Errorf("Error: %v\n\n%s", ErrNoQueryFile, Usage())
	case len(files) > 1:
		return nil, exit.Errorf("Error: %v\n\n%s", ErrTooManyQueryFiles, Usage())
	}

	config := &Config{
		QueryFile:   files[0],
		Debug:       *debug,
		Output:      *output,
		RateLimit:   *rateLimit,
		Concurrency: *concurrency,
	}

	if err := config.Validate(); err != nil {
		return nil, exit.Errorf("Error: %v\n\n%s", err, Usage())
	}

	return config, nil
}

// Usage returns a usage string for the CLI tool.
func Usage() string {
	return `tidbit - query JSON files

Usage: tidbit [options] <query.yaml>

Options:
  --debug                 Enable debug logging on stderr
  --output FILE           Write results to FILE instead of stdout
  --rate-limit N          Records read per second by streaming queries (0 for unlimited)
  --concurrency N         Records projected in parallel by in-memory queries (default: 1)
  -h, --help              Show this help message

Examples:
  tidbit users.yaml                          # Print matching records as a JSON array
  tidbit users.yaml --output result.json     # Write them to result.json
  tidbit users.yaml --rate-limit 100 --debug # Read at most 100 records per second`
}
