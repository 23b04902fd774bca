package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/murmur-app/murmur/pkg/sqliteutil"
)

// SQLiteStore implements Store using SQLite with an FTS5 index.
//
// Every operation runs under a single mutex: the application-level contract
// is at most one in-flight operation against the archive at a time. The
// search index is kept in sync with the transcriptions table by triggers, so
// each mutating statement updates both as one unit of work.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the archive database at path, runs
// pending schema migrations and validates the search index.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqliteutil.OpenDB(path)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transcriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)
	`)
	if err != nil {
		db.Close()
		if sqliteutil.IsCantOpenError(err) {
			return nil, sqliteutil.DiagnoseDBOpenError(path, err)
		}
		return nil, err
	}

	// Column backfills must land before the index exists so the triggers
	// never see a half-migrated table.
	migrationManager := NewMigrationManager(db)
	if err := migrationManager.InitializeMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := createSearchIndex(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// createSearchIndex creates the FTS5 external-content table and the triggers
// that keep it synchronized with the transcriptions table. Each trigger fires
// inside the statement's own transaction, so a partial failure rolls back
// both writes.
//
// When the index table is created for the first time over a database that
// already has rows (an upgrade from a version without search), it is rebuilt
// from the content table so the index never diverges from the primary table.
func createSearchIndex(ctx context.Context, db *sql.DB) error {
	var existing int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'transcriptions_fts'").Scan(&existing)
	if err != nil {
		return fmt.Errorf("checking search index: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE VIRTUAL TABLE IF NOT EXISTS transcriptions_fts USING fts5(
			text,
			content='transcriptions',
			content_rowid='id'
		)
	`)
	if err != nil {
		return fmt.Errorf("creating search index: %w", err)
	}

	if existing == 0 {
		if _, err := db.ExecContext(ctx, "INSERT INTO transcriptions_fts(transcriptions_fts) VALUES('rebuild')"); err != nil {
			return fmt.Errorf("populating search index: %w", err)
		}
	}

	_, err = db.ExecContext(ctx, `
		CREATE TRIGGER IF NOT EXISTS transcriptions_ai AFTER INSERT ON transcriptions BEGIN
			INSERT INTO transcriptions_fts(rowid, text) VALUES (new.id, new.text);
		END;

		CREATE TRIGGER IF NOT EXISTS transcriptions_ad AFTER DELETE ON transcriptions BEGIN
			INSERT INTO transcriptions_fts(transcriptions_fts, rowid, text) VALUES('delete', old.id, old.text);
		END;

		CREATE TRIGGER IF NOT EXISTS transcriptions_au AFTER UPDATE ON transcriptions BEGIN
			INSERT INTO transcriptions_fts(transcriptions_fts, rowid, text) VALUES('delete', old.id, old.text);
			INSERT INTO transcriptions_fts(rowid, text) VALUES (new.id, new.text);
		END
	`)
	if err != nil {
		return fmt.Errorf("creating search index triggers: %w", err)
	}

	return nil
}

// Save inserts a new transcription and returns its id.
func (s *SQLiteStore) Save(ctx context.Context, text string, durationSeconds float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO transcriptions (text, duration_seconds, created_at) VALUES (?, ?, ?)",
		text, durationSeconds, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("saving transcription: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return id, nil
}

// List returns one page of transcriptions, newest first, plus the total
// unfiltered count. Ordering is by id: ids are assigned monotonically at
// save time, while the stored timestamp text has variable fraction width
// (RFC3339Nano trims trailing zeros) and does not sort lexicographically
// within a second.
func (s *SQLiteStore) List(ctx context.Context, page, limit int) (*HistoryPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := pageOffset(page, limit)

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transcriptions").Scan(&total); err != nil {
		return nil, fmt.Errorf("counting transcriptions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, duration_seconds, tokens_used, created_at, is_favorite
		FROM transcriptions
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing transcriptions: %w", err)
	}
	defer rows.Close()

	items, err := collectTranscriptions(rows)
	if err != nil {
		return nil, err
	}

	return &HistoryPage{Items: items, Total: total}, nil
}

// Search returns transcriptions whose text matches the query as a literal
// phrase with a trailing prefix wildcard, newest first, plus the match count.
func (s *SQLiteStore) Search(ctx context.Context, query string, page, limit int) (*HistoryPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := pageOffset(page, limit)
	match := phraseQuery(query)

	var total int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transcriptions WHERE id IN (SELECT rowid FROM transcriptions_fts WHERE transcriptions_fts MATCH ?)",
		match).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("counting search results: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.text, t.duration_seconds, t.tokens_used, t.created_at, t.is_favorite
		FROM transcriptions t
		WHERE t.id IN (SELECT rowid FROM transcriptions_fts WHERE transcriptions_fts MATCH ?)
		ORDER BY t.id DESC
		LIMIT ? OFFSET ?
	`, match, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("searching transcriptions: %w", err)
	}
	defer rows.Close()

	items, err := collectTranscriptions(rows)
	if err != nil {
		return nil, err
	}

	return &HistoryPage{Items: items, Total: total}, nil
}

// Delete removes one transcription. The index entry is removed by trigger in
// the same statement transaction.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM transcriptions WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting transcription: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// Clear removes all transcriptions and forces a full index rebuild so no
// stale entries survive the bulk delete. Both run in one transaction.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM transcriptions"); err != nil {
		return fmt.Errorf("clearing transcriptions: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO transcriptions_fts(transcriptions_fts) VALUES('rebuild')"); err != nil {
		return fmt.Errorf("rebuilding search index: %w", err)
	}

	return tx.Commit()
}

// ToggleFavorite flips the favorite flag and returns the resulting state.
func (s *SQLiteStore) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		"UPDATE transcriptions SET is_favorite = CASE WHEN is_favorite = 1 THEN 0 ELSE 1 END WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("toggling favorite: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rowsAffected == 0 {
		return false, ErrNotFound
	}

	var isFavorite bool
	err = tx.QueryRowContext(ctx, "SELECT is_favorite FROM transcriptions WHERE id = ?", id).Scan(&isFavorite)
	if err != nil {
		return false, err
	}

	return isFavorite, tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// pageOffset converts a 1-based page to a row offset, clamping pages below 1
// so a negative offset is never computed.
func pageOffset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

// phraseQuery turns free text into an FTS5 query: the whole input is a
// single quoted phrase (embedded quotes doubled, never query syntax) with a
// trailing * so partial last words still match.
func phraseQuery(query string) string {
	return fmt.Sprintf(`"%s"*`, strings.ReplaceAll(query, `"`, `""`))
}

// collectTranscriptions scans all remaining rows.
func collectTranscriptions(rows *sql.Rows) ([]Transcription, error) {
	items := []Transcription{}
	for rows.Next() {
		var (
			t         Transcription
			duration  sql.NullFloat64
			tokens    sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.Text, &duration, &tokens, &createdAt, &t.IsFavorite); err != nil {
			return nil, fmt.Errorf("scanning transcription: %w", err)
		}
		if duration.Valid {
			t.DurationSeconds = &duration.Float64
		}
		if tokens.Valid {
			t.TokensUsed = &tokens.Int64
		}
		parsed, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for id %d: %w", t.ID, err)
		}
		t.CreatedAt = parsed
		items = append(items, t)
	}
	return items, rows.Err()
}

// parseTimestamp accepts both the RFC3339 form written by this version and
// the 'YYYY-MM-DD HH:MM:SS' form found in databases written before the
// migration tracking existed.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}
