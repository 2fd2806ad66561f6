// Package testing provides testing utilities and helpers for the treasury project.
package testing

import (
	"fmt"
	"os"
	"testing"

	"github.com/aristath/treasury/internal/database"
	"github.com/rs/zerolog"
)

// NewTestDB creates a temporary file-backed SQLite database for testing with automatic schema migration.
// The database is closed and removed when the test finishes.
//
// Supported schema names:
//   - "treasury" - applies treasury_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	// Temporary files keep tests isolated and let WAL mode work
	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(tmpPath + suffix)
		}
	})

	return db
}

// NewTestRuntime creates a migrated treasury database and the atomic runtime over it.
func NewTestRuntime(t *testing.T) *database.Runtime {
	t.Helper()
	return database.NewRuntime(NewTestDB(t, "treasury"), zerolog.Nop())
}
