// Package config handles ersatz configuration: log level, database, output
// format and the pseudo table-valued functions available to queries.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"ersatz/internal/engine"
	"ersatz/internal/sqlrewrite"
)

// Output formats accepted by Config.Output.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputCSV   = "csv"
)

// Defaults applied before any file, environment or flag values.
const (
	DefaultLogLevel = "info"
	DefaultDatabase = ":memory:"
	DefaultOutput   = OutputTable
)

// ErrInvalidOutput is returned by Validate for an unknown output format.
var ErrInvalidOutput = errors.New("invalid output format")

// FunctionConfig declares a pseudo table-valued function. Rows are returned
// unchanged for every call.
type FunctionConfig struct {
	Columns []string `koanf:"columns" yaml:"columns"`
	Rows    [][]any  `koanf:"rows" yaml:"rows,omitempty"`
}

// Config holds the CLI configuration.
type Config struct {
	LogLevel string `koanf:"log_level"` // debug, info, warn, error (default "info")
	Database string `koanf:"database"`  // SQLite path or ":memory:"
	Output   string `koanf:"output"`    // table, json or csv

	// Functions is keyed by upper-cased function name.
	Functions map[string]FunctionConfig `koanf:"functions"`
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Mappings returns the column mappings for the configured functions.
func (c *Config) Mappings() sqlrewrite.Mappings {
	m := make(sqlrewrite.Mappings, len(c.Functions))
	for name, fn := range c.Functions {
		m[name] = append([]string(nil), fn.Columns...)
	}
	return m
}

// EngineFunctions returns the configured functions in name order.
func (c *Config) EngineFunctions() []engine.Function {
	names := make([]string, 0, len(c.Functions))
	for name := range c.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	fns := make([]engine.Function, 0, len(names))
	for _, name := range names {
		fn := c.Functions[name]
		fns = append(fns, engine.StaticFunction(name, fn.Columns, fn.Rows))
	}
	return fns
}

// Validate checks the output format and every function declaration.
func (c *Config) Validate() error {
	switch c.Output {
	case OutputTable, OutputJSON, OutputCSV:
	default:
		return fmt.Errorf("%w %q: must be one of table, json, csv", ErrInvalidOutput, c.Output)
	}

	if err := c.Mappings().Validate(); err != nil {
		return fmt.Errorf("functions: %w", err)
	}
	for name, fn := range c.Functions {
		for i, row := range fn.Rows {
			if len(row) != len(fn.Columns) {
				return fmt.Errorf("functions: %s: row %d has %d values, want %d", name, i, len(row), len(fn.Columns))
			}
		}
	}
	return nil
}

// normalizeFunctions upper-cases function names, the form the rewriter
// matches against.
func normalizeFunctions(in map[string]FunctionConfig) (map[string]FunctionConfig, error) {
	out := make(map[string]FunctionConfig, len(in))
	for name, fn := range in {
		key := strings.ToUpper(strings.TrimSpace(name))
		if key == "" {
			return nil, errors.New("functions: empty function name")
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("functions: %q declared more than once", key)
		}
		out[key] = fn
	}
	return out, nil
}
