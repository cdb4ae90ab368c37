// Package engine runs queries that call pseudo table-valued functions
// against SQLite.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattn/go-sqlite3"

	"ersatz/internal/db"
	"ersatz/internal/sqlrewrite"
)

// Engine wraps a SQLite connection pool in which every configured Function
// is registered, and rewrites queries before executing them.
//
// For an in-memory database the pool holds a single connection: close
// *sql.Rows before issuing the next query.
type Engine struct {
	db       *sql.DB
	mappings sqlrewrite.Mappings
	logger   *slog.Logger
}

// Open opens the SQLite database at dsn (":memory:" or a file path) with fns
// registered on every connection. A nil logger discards log output.
func Open(ctx context.Context, dsn string, fns []Function, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	functions := append([]Function(nil), fns...)
	mappings, err := buildMappings(functions)
	if err != nil {
		return nil, err
	}

	driver := db.RegisterDriver(func(conn *sqlite3.SQLiteConn) error {
		for _, fn := range functions {
			if err := conn.RegisterFunc(strings.ToLower(fn.Name), fn.scalar(), false); err != nil {
				return fmt.Errorf("register function %q: %w", fn.Name, err)
			}
		}
		return nil
	})

	sqlDB, err := db.OpenSQLite(ctx, driver, dsn, 0)
	if err != nil {
		return nil, err
	}

	logger.Debug("engine opened", "dsn", dsn, "functions", mappings.Names())
	return &Engine{
		db:       sqlDB,
		mappings: mappings,
		logger:   logger,
	}, nil
}

func buildMappings(fns []Function) (sqlrewrite.Mappings, error) {
	mappings := make(sqlrewrite.Mappings, len(fns))
	for _, fn := range fns {
		if fn.Name == "" {
			return nil, errors.New("function name is required")
		}
		if fn.Call == nil {
			return nil, fmt.Errorf("function %q has no implementation", fn.Name)
		}
		key := strings.ToUpper(fn.Name)
		if _, dup := mappings[key]; dup {
			return nil, fmt.Errorf("duplicate function %q", fn.Name)
		}
		mappings[key] = append([]string(nil), fn.Columns...)
	}
	if err := mappings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid functions: %w", err)
	}
	return mappings, nil
}

// Mappings returns the column mappings the engine rewrites with.
func (e *Engine) Mappings() sqlrewrite.Mappings {
	out := make(sqlrewrite.Mappings, len(e.mappings))
	for name, cols := range e.mappings {
		out[name] = append([]string(nil), cols...)
	}
	return out
}

// Rewrite returns query as it would be executed.
func (e *Engine) Rewrite(query string) (string, error) {
	rewritten, err := sqlrewrite.Rewrite(query, e.mappings)
	if err != nil {
		return "", fmt.Errorf("rewrite query: %w", err)
	}
	if rewritten != query {
		e.logger.Debug("rewrote query", "original", query, "rewritten", rewritten)
	}
	return rewritten, nil
}

// Query rewrites query and runs it. Placeholders use the $n form.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rewritten, err := e.Rewrite(query)
	if err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, rewritten, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return rows, nil
}

// Exec rewrites query and runs it without returning rows.
func (e *Engine) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	rewritten, err := e.Rewrite(query)
	if err != nil {
		return nil, err
	}

	res, err := e.db.ExecContext(ctx, rewritten, args...)
	if err != nil {
		return nil, fmt.Errorf("execute statement: %w", err)
	}
	return res, nil
}

// Close closes the underlying database.
func (e *Engine) Close() error {
	return e.db.Close()
}
