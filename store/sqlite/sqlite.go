/*
Package sqlite provides the SQLite-backed persistence for the engine.

PURPOSE:
  Two small stores live here: the chat address book and the statistics
  snapshot log. Both carry merge-safe write semantics so repeated passes
  stay idempotent:

  - chat_addresses: merge-or-insert keyed by space id. A later write may
    heal a record by attaching an email, but can never blank one out.
  - statistics: append-only; a snapshot and its per-user entries are
    written atomically in one transaction.

INTERFACES IMPLEMENTED:
  notify.AddressBook
  sched.StatisticsStore

WAL MODE:
  Opened with WAL so the runner's writes don't block the HTTP surface's
  reads.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool with versioned migrations.

SEE ALSO:
  - store/memory.go: In-memory implementation for tests and dev mode
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/compliance-engine/notify"
	"github.com/warp/compliance-engine/sched"
)

// Store implements the engine's persistence interfaces over SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ notify.AddressBook    = (*Store)(nil)
	_ sched.StatisticsStore = (*Store)(nil)
)

// New opens (and migrates) the database at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Chat address book (merge-or-insert by space)
	CREATE TABLE IF NOT EXISTS chat_addresses (
		space_id     TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		email        TEXT NOT NULL DEFAULT '',
		updated_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_addresses_email ON chat_addresses(email);

	-- Statistics snapshots (append-only telemetry)
	CREATE TABLE IF NOT EXISTS statistics_snapshots (
		id       TEXT PRIMARY KEY,
		taken_at TEXT NOT NULL,
		state    TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS statistics_entries (
		snapshot_id     TEXT NOT NULL REFERENCES statistics_snapshots(id),
		user_name       TEXT NOT NULL,
		manager_name    TEXT NOT NULL,
		department_name TEXT NOT NULL,
		state           TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_statistics_entries_snapshot ON statistics_entries(snapshot_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ADDRESS BOOK
// =============================================================================

// FetchAll returns every stored chat address.
func (s *Store) FetchAll(ctx context.Context) ([]notify.ChatAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT space_id, user_id, display_name, email
		FROM chat_addresses ORDER BY space_id`)
	if err != nil {
		return nil, fmt.Errorf("fetch addresses: %w", err)
	}
	defer rows.Close()

	var addresses []notify.ChatAddress
	for rows.Next() {
		var a notify.ChatAddress
		if err := rows.Scan(&a.SpaceID, &a.UserID, &a.DisplayName, &a.Email); err != nil {
			return nil, err
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

// PersistBatch upserts addresses atomically. An incoming empty email never
// overwrites a healed one.
func (s *Store) PersistBatch(ctx context.Context, addresses []notify.ChatAddress) error {
	if len(addresses) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chat_addresses (space_id, user_id, display_name, email, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(space_id) DO UPDATE SET
			user_id      = excluded.user_id,
			display_name = excluded.display_name,
			email        = CASE WHEN excluded.email != '' THEN excluded.email ELSE chat_addresses.email END,
			updated_at   = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, a := range addresses {
		if _, err := stmt.ExecContext(ctx, a.SpaceID, a.UserID, a.DisplayName, a.Email, now); err != nil {
			return fmt.Errorf("persist address %s: %w", a.SpaceID, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// STATISTICS
// =============================================================================

// AppendSnapshot writes a snapshot and its entries in one transaction.
func (s *Store) AppendSnapshot(ctx context.Context, snapshot sched.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO statistics_snapshots (id, taken_at, state) VALUES (?, ?, ?)`,
		snapshot.ID, snapshot.TakenAt.UTC().Format(time.RFC3339), snapshot.State); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}

	for _, e := range snapshot.Entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO statistics_entries (snapshot_id, user_name, manager_name, department_name, state)
			VALUES (?, ?, ?, ?, ?)`,
			snapshot.ID, e.UserName, e.ManagerName, e.DepartmentName, e.State); err != nil {
			return fmt.Errorf("append snapshot entry: %w", err)
		}
	}
	return tx.Commit()
}

// ListSnapshots returns the most recent snapshots with their entries, newest
// first. Used by the HTTP surface only.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]sched.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, taken_at, state FROM statistics_snapshots
		ORDER BY taken_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []sched.Snapshot
	for rows.Next() {
		var snap sched.Snapshot
		var takenAt string
		if err := rows.Scan(&snap.ID, &takenAt, &snap.State); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, takenAt); err == nil {
			snap.TakenAt = t
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range snapshots {
		entries, err := s.snapshotEntries(ctx, snapshots[i].ID)
		if err != nil {
			return nil, err
		}
		snapshots[i].Entries = entries
	}
	return snapshots, nil
}

func (s *Store) snapshotEntries(ctx context.Context, snapshotID string) ([]sched.SnapshotEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_name, manager_name, department_name, state
		FROM statistics_entries WHERE snapshot_id = ?`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []sched.SnapshotEntry
	for rows.Next() {
		var e sched.SnapshotEntry
		if err := rows.Scan(&e.UserName, &e.ManagerName, &e.DepartmentName, &e.State); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
