// Package testing provides shared test helpers for the divmon project.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/divmon/internal/database"
)

// NewTestDB creates a file-backed sqlite database in a per-test temp
// directory. The connection is closed and the file removed when the test
// finishes.
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})
	return db
}
