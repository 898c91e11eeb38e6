// Package testutil provides shared test helpers for setting up image stores and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/randpic/internal/index"
	"github.com/starford/randpic/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "randpic-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary image directory with a storage.Provider.
func TestStore(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// PNG returns a minimal PNG header followed by salt, so different salts
// give different content hashes.
func PNG(salt string) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), salt...)
}
