package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deck-tracker/internal/config"
	"github.com/deck-tracker/internal/models"
)

// newTestDB opens a throwaway database in a temp dir and applies every up
// migration to it.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5 * time.Second,
	}

	db, err := NewDB(cfg)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func applyMigrations(t *testing.T, db *DB) {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no migration files found")
	sort.Strings(paths)

	for _, path := range paths {
		script, err := os.ReadFile(path)
		require.NoError(t, err, "failed to read %s", path)

		_, err = db.SQL().Exec(string(script))
		require.NoError(t, err, "failed to apply %s", path)
	}
}

// seedGame inserts a minimal game row for tests that need FK targets.
func seedGame(t *testing.T, db *DB, appID int64, name string) {
	t.Helper()

	repo := NewGameRepository(db)
	err := repo.Upsert(context.Background(), &models.Game{
		AppID:       appID,
		Name:        name,
		LastUpdated: time.Now().UTC(),
	})
	require.NoError(t, err, "failed to seed game %d", appID)
}

func strPtr(s string) *string       { return &s }
func floatPtr(f float64) *float64   { return &f }
func intPtr(i int) *int             { return &i }
func timePtr(ts time.Time) *time.Time { return &ts }
