package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration
type Migration struct {
	ID          int
	Name        string
	Description string
	UpSQL       string
	DownSQL     string
	AppliedAt   time.Time
	// UpFunc is an optional Go function run instead of UpSQL, for
	// migrations that need to inspect the schema first
	UpFunc func(ctx context.Context, tx *sql.Tx) error
}

// MigrationManager handles database migrations
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// InitializeMigrations sets up the migrations table and runs pending
// migrations. It must complete before the search index is created so that
// column backfills never race with index validation.
func (m *MigrationManager) InitializeMigrations(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	if err := m.RunPendingMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run pending migrations: %w", err)
	}

	return nil
}

// createMigrationsTable creates the migrations tracking table
func (m *MigrationManager) createMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			description TEXT,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

// RunPendingMigrations executes all migrations that haven't been applied yet
func (m *MigrationManager) RunPendingMigrations(ctx context.Context) error {
	for _, migration := range getAllMigrations() {
		applied, err := m.isMigrationApplied(ctx, migration.Name)
		if err != nil {
			return fmt.Errorf("failed to check if migration %s is applied: %w", migration.Name, err)
		}

		if !applied {
			if err := m.applyMigration(ctx, &migration); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", migration.Name, err)
			}
		}
	}

	return nil
}

// isMigrationApplied checks if a migration has already been applied
func (m *MigrationManager) isMigrationApplied(ctx context.Context, name string) (bool, error) {
	var count int
	err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations WHERE name = ?", name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyMigration applies a single migration in its own transaction. The
// schema change and the tracking row commit or roll back together.
func (m *MigrationManager) applyMigration(ctx context.Context, migration *Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if migration.UpFunc != nil {
		if err := migration.UpFunc(ctx, tx); err != nil {
			return fmt.Errorf("failed to execute migration function: %w", err)
		}
	} else if migration.UpSQL != "" {
		if _, err := tx.ExecContext(ctx, migration.UpSQL); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO migrations (id, name, description, applied_at) VALUES (?, ?, ?, ?)",
		migration.ID, migration.Name, migration.Description, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	return nil
}

// GetAppliedMigrations returns a list of applied migrations
func (m *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT id, name, description, applied_at FROM migrations ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var migrations []Migration
	for rows.Next() {
		var migration Migration
		var appliedAtStr string

		err := rows.Scan(&migration.ID, &migration.Name, &migration.Description, &appliedAtStr)
		if err != nil {
			return nil, err
		}

		migration.AppliedAt, err = time.Parse(time.RFC3339, appliedAtStr)
		if err != nil {
			return nil, err
		}

		migrations = append(migrations, migration)
	}

	return migrations, rows.Err()
}

// getAllMigrations returns all available migrations in order.
//
// The column migrations use addColumnIfMissing instead of a plain ALTER so
// they can be applied to databases created before migration tracking
// existed: such databases may already have some of the columns.
func getAllMigrations() []Migration {
	return []Migration{
		{
			ID:          1,
			Name:        "001_add_duration_seconds_column",
			Description: "Add duration_seconds column to transcriptions table",
			UpFunc:      addColumnIfMissing("duration_seconds", "REAL"),
			DownSQL:     `ALTER TABLE transcriptions DROP COLUMN duration_seconds`,
		},
		{
			ID:          2,
			Name:        "002_add_tokens_used_column",
			Description: "Add tokens_used column to transcriptions table",
			UpFunc:      addColumnIfMissing("tokens_used", "INTEGER"),
			DownSQL:     `ALTER TABLE transcriptions DROP COLUMN tokens_used`,
		},
		{
			ID:          3,
			Name:        "003_add_is_favorite_column",
			Description: "Add is_favorite column to transcriptions table",
			UpFunc:      addColumnIfMissing("is_favorite", "BOOLEAN DEFAULT 0"),
			DownSQL:     `ALTER TABLE transcriptions DROP COLUMN is_favorite`,
		},
	}
}

// addColumnIfMissing returns a migration function that adds a column to the
// transcriptions table only if it does not already exist.
func addColumnIfMissing(column, definition string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		exists, err := columnExists(ctx, tx, "transcriptions", column)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE transcriptions ADD COLUMN %s %s", column, definition))
		return err
	}
}

// columnExists reports whether the table already has the named column.
func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}

	return false, rows.Err()
}
