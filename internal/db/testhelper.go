package db

import (
	"context"
	"database/sql"
	"testing"
)

// OpenTestSQLite opens an in-memory SQLite database whose connections run
// hook, and registers cleanup. hook may be nil.
func OpenTestSQLite(t testing.TB, hook ConnectHook) *sql.DB {
	t.Helper()

	db, err := OpenSQLite(context.Background(), RegisterDriver(hook), MemoryDSN, 0)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
