// Package db opens the SQLite databases rewritten queries run against.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// SQLite DSN parameters for file databases.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
	defaultMaxOpen     = 4
)

// MemoryDSN is a private in-memory database.
const MemoryDSN = ":memory:"

// driverPrefix prefixes the names of drivers registered by RegisterDriver.
const driverPrefix = "sqlite3_ersatz_"

// ConnectHook runs on every new SQLite connection, before it is handed to
// the pool.
type ConnectHook func(conn *sqlite3.SQLiteConn) error

// RegisterDriver registers a go-sqlite3 driver that runs hook on every new
// connection and returns its name. Each call registers a new driver, since
// database/sql cannot unregister or replace one.
func RegisterDriver(hook ConnectHook) string {
	name := driverPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	sql.Register(name, &sqlite3.SQLiteDriver{ConnectHook: hook})
	return name
}

// OpenSQLite opens a *sql.DB pool for path through the named driver.
//
// An in-memory database exists per connection, so it is opened with a
// single connection and every query sees the same data. File databases use
// WAL journaling, busy_timeout=5000ms, synchronous=NORMAL and foreign_keys=on,
// with up to maxOpen connections (0 means 4).
func OpenSQLite(ctx context.Context, driverName, path string, maxOpen int) (*sql.DB, error) {
	if path == "" {
		path = MemoryDSN
	}

	dsn := path
	if !IsMemory(path) {
		dsn = buildDSN(path)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if IsMemory(path) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		// Closing the last connection discards the database.
		db.SetConnMaxLifetime(0)
	} else {
		if maxOpen <= 0 {
			maxOpen = defaultMaxOpen
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
		db.SetConnMaxLifetime(time.Hour)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

// IsMemory reports whether path names an in-memory database.
func IsMemory(path string) bool {
	return path == MemoryDSN || strings.Contains(path, "mode=memory")
}

// buildDSN constructs a SQLite DSN with hardened parameters.
func buildDSN(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}
