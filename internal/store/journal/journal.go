// Package journal records ledger events in a sqlite table.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"inditrade/internal/store"

	_ "modernc.org/sqlite"
)

// Store appends ledger events to sqlite.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

var _ store.EventStore = (*Store)(nil)

// Open opens or creates the journal database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("journal closed")
	}
	return s.db, nil
}

func (s *Store) Append(ctx context.Context, evt store.Event) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if strings.TrimSpace(evt.ID) == "" {
		return fmt.Errorf("event id is required")
	}
	created := evt.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO ledger_events(id, type, account_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		evt.ID, string(evt.Type), evt.AccountID, nullIfEmpty(evt.Payload), created.UnixMilli())
	if err != nil {
		return fmt.Errorf("append event %s: %w", evt.ID, err)
	}
	return nil
}

// List returns the newest events first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]store.Event, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	query := `SELECT id, type, account_id, payload, created_at FROM ledger_events ORDER BY created_at DESC, seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Event
	for rows.Next() {
		var (
			evt       store.Event
			typ       string
			payload   sql.NullString
			createdMs int64
		)
		if err := rows.Scan(&evt.ID, &typ, &evt.AccountID, &payload, &createdMs); err != nil {
			return nil, err
		}
		evt.Type = store.EventType(typ)
		if payload.Valid {
			evt.Payload = json.RawMessage(payload.String)
		}
		evt.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, evt)
	}
	return out, rows.Err()
}

func ensureSchema(db *sql.DB) error {
	stmt := `
	CREATE TABLE IF NOT EXISTS ledger_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		account_id TEXT,
		payload TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_events_created ON ledger_events(created_at);
	`
	_, err := db.Exec(stmt)
	return err
}

func nullIfEmpty(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
