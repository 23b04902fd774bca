package archive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmur-app/murmur/pkg/sqliteutil"
)

func TestMigrationsOnFreshDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	manager := NewMigrationManager(store.db)
	applied, err := manager.GetAppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Len(t, applied, len(getAllMigrations()))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)

	id, err := store.Save(context.Background(), "survives reopening", 1.5)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Opening again re-runs InitializeMigrations against an up-to-date
	// database; nothing should change and no data should be lost.
	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	page, err := store.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, id, page.Items[0].ID)
	assert.Equal(t, "survives reopening", page.Items[0].Text)
}

func TestMigrationsUpgradeLegacyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	// A database created before migration tracking: no optional columns,
	// no migrations table, no search index.
	db, err := sqliteutil.OpenDB(path)
	require.NoError(t, err)

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE transcriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	require.NoError(t, err)
	_, err = db.ExecContext(context.Background(), "INSERT INTO transcriptions (text) VALUES (?)", "pre-upgrade entry")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	// The legacy row survives with defaults for the added columns.
	page, err := store.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "pre-upgrade entry", page.Items[0].Text)
	assert.Nil(t, page.Items[0].DurationSeconds)
	assert.Nil(t, page.Items[0].TokensUsed)
	assert.False(t, page.Items[0].IsFavorite)

	// Columns added by migration are usable immediately.
	state, err := store.ToggleFavorite(context.Background(), page.Items[0].ID)
	require.NoError(t, err)
	assert.True(t, state)
}

func TestMigrationsUpgradePartiallyMigratedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.db")

	// A database where some optional columns already exist but no
	// migrations were recorded. The column migrations must detect this and
	// not fail with a duplicate column error.
	db, err := sqliteutil.OpenDB(path)
	require.NoError(t, err)

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE transcriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			duration_seconds REAL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	require.NoError(t, err)
	_, err = db.ExecContext(context.Background(), "INSERT INTO transcriptions (text, duration_seconds) VALUES (?, ?)", "half migrated", 3.25)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	page, err := store.List(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].DurationSeconds)
	assert.InDelta(t, 3.25, *page.Items[0].DurationSeconds, 0.001)

	// The search index is rebuilt over pre-existing rows when it is first
	// created, so legacy data is searchable right after the upgrade.
	result, err := store.Search(context.Background(), "half", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)

	id, err := store.Save(context.Background(), "freshly indexed", 0)
	require.NoError(t, err)

	result, err = store.Search(context.Background(), "freshly", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
	require.Len(t, result.Items, 1)
	assert.Equal(t, id, result.Items[0].ID)
}
