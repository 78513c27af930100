// Package storetest opens throwaway SQLite stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"hrms/internal/store"
)

// New returns a migrated store backed by a file in t.TempDir, closed on cleanup.
func New(tb testing.TB) *store.DB {
	tb.Helper()
	url := "sqlite://" + filepath.Join(tb.TempDir(), "hrms.db")
	db, err := store.Open(context.Background(), url, 8)
	if err != nil {
		tb.Fatalf("open test store: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db
}
