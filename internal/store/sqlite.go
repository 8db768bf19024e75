package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilupskalvis/agentmerge/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates an SQLite database and its schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer keeps batch transactions strictly ordered.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// initialize creates the database schema
func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conflicts (
		id TEXT PRIMARY KEY,
		file_path TEXT NOT NULL,
		status TEXT NOT NULL,
		data JSON NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rollback_states (
		conflict_id TEXT PRIMARY KEY,
		expires_at DATETIME NOT NULL,
		data JSON NOT NULL
	);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		conflict_id TEXT NOT NULL,
		action TEXT NOT NULL,
		data JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conflicts_file ON conflicts(file_path);
	CREATE INDEX IF NOT EXISTS idx_audit_conflict ON audit_log(conflict_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Apply writes the batch in one SQL transaction.
func (s *SQLiteStore) Apply(ctx context.Context, b *models.Batch) error {
	if b == nil || b.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range b.Conflicts {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal conflict: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conflicts (id, file_path, status, data) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET status = excluded.status, data = excluded.data
		`, c.ID, c.FilePath, string(c.Status), string(data)); err != nil {
			return fmt.Errorf("store conflict %s: %w", c.ID, err)
		}
	}
	for _, id := range b.DeletedConflicts {
		if _, err := tx.ExecContext(ctx, `DELETE FROM conflicts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete conflict %s: %w", id, err)
		}
	}

	for _, rs := range b.Rollbacks {
		data, err := json.Marshal(rs)
		if err != nil {
			return fmt.Errorf("marshal rollback state: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rollback_states (conflict_id, expires_at, data) VALUES (?, ?, ?)
			ON CONFLICT(conflict_id) DO UPDATE SET expires_at = excluded.expires_at, data = excluded.data
		`, rs.ConflictID, rs.ExpiresAt, string(data)); err != nil {
			return fmt.Errorf("store rollback state %s: %w", rs.ConflictID, err)
		}
	}
	for _, id := range b.DeletedRollbacks {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rollback_states WHERE conflict_id = ?`, id); err != nil {
			return fmt.Errorf("delete rollback state %s: %w", id, err)
		}
	}

	for _, e := range b.Audit {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal audit entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO audit_log (id, conflict_id, action, data) VALUES (?, ?, ?, ?)
		`, e.ID, e.ConflictID, string(e.Action), string(data)); err != nil {
			return fmt.Errorf("store audit entry: %w", err)
		}
	}

	return tx.Commit()
}

// Load reads all tables. Audit rows are ordered by their insertion sequence.
func (s *SQLiteStore) Load(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{}

	if err := s.scanJSON(ctx, `SELECT data FROM conflicts ORDER BY id`, func(data []byte) error {
		var c models.Conflict
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("decode conflict: %w", err)
		}
		snap.Conflicts = append(snap.Conflicts, &c)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.scanJSON(ctx, `SELECT data FROM rollback_states ORDER BY conflict_id`, func(data []byte) error {
		var rs models.RollbackState
		if err := json.Unmarshal(data, &rs); err != nil {
			return fmt.Errorf("decode rollback state: %w", err)
		}
		snap.Rollbacks = append(snap.Rollbacks, &rs)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.scanJSON(ctx, `SELECT data FROM audit_log ORDER BY seq`, func(data []byte) error {
		var e models.AuditEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("decode audit entry: %w", err)
		}
		snap.Audit = append(snap.Audit, &e)
		return nil
	}); err != nil {
		return nil, err
	}

	return snap, nil
}

func (s *SQLiteStore) scanJSON(ctx context.Context, query string, fn func([]byte) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return err
		}
		if err := fn([]byte(data)); err != nil {
			return err
		}
	}
	return rows.Err()
}
