package app

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/quire/internal/selector"
)

// Commands understood by App.Run.
const (
	CommandCompile = "compile"
	CommandQuery   = "query"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// MemoryCache selects the in-memory snapshot cache.
const MemoryCache = ":memory:"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command  string
	Paths    []string // .hcl files or directories
	Selector string   // query only

	Format    string
	OutPath   string // empty writes to the app's output writer
	Workers   int
	CachePath string // empty disables the cache

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Command {
	case CommandCompile:
	case CommandQuery:
		if cfg.Selector == "" {
			return nil, errors.New("query requires a selector")
		}
		if _, err := selector.Parse(cfg.Selector); err != nil {
			return nil, fmt.Errorf("invalid selector: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown command %q", cfg.Command)
	}

	if len(cfg.Paths) == 0 {
		return nil, errors.New("at least one document path is required")
	}
	switch cfg.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("invalid format %q: must be 'text', 'json' or 'yaml'", cfg.Format)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	return &cfg, nil
}
