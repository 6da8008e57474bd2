// Package sqlite provides the SQLite event store.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/domain"
	"github.com/DataDog/dd-sdk-ios-sub000/internal/core/ports"
)

// Store is a SQLite implementation of ports.EventStore.
type Store struct {
	db *sqlx.DB
}

var _ ports.EventStore = (*Store)(nil)

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
}

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			application_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			view_id TEXT NOT NULL,
			document_version INTEGER NOT NULL DEFAULT 0,
			date TIMESTAMP NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_view ON events(view_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(type)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

type eventRow struct {
	ID              string    `db:"id"`
	Type            string    `db:"type"`
	ApplicationID   string    `db:"application_id"`
	SessionID       string    `db:"session_id"`
	ViewID          string    `db:"view_id"`
	DocumentVersion int64     `db:"document_version"`
	Date            time.Time `db:"date"`
	Payload         string    `db:"payload"`
	CreatedAt       time.Time `db:"created_at"`
}

func (s *Store) AppendEvent(ctx context.Context, event *ports.StoredEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	row := eventRow{
		ID:              event.ID,
		Type:            string(event.Type),
		ApplicationID:   event.ApplicationID,
		SessionID:       event.SessionID,
		ViewID:          event.ViewID,
		DocumentVersion: event.DocumentVersion,
		Date:            event.Date,
		Payload:         string(event.Payload),
		CreatedAt:       event.CreatedAt,
	}

	query := `INSERT INTO events (id, type, application_id, session_id, view_id, document_version, date, payload, created_at)
	          VALUES (:id, :type, :application_id, :session_id, :view_id, :document_version, :date, :payload, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, opts ports.ListOptions) ([]*ports.StoredEvent, error) {
	var (
		where []string
		args  []any
	)
	if opts.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, opts.SessionID)
	}
	if opts.ViewID != "" {
		where = append(where, "view_id = ?")
		args = append(args, opts.ViewID)
	}
	if opts.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(opts.Type))
	}

	query := `SELECT id, type, application_id, session_id, view_id, document_version, date, payload, created_at
	          FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC LIMIT ? OFFSET ?"

	limit := opts.Limit
	if limit == 0 {
		limit = 100 // default limit
	}
	args = append(args, limit, opts.Offset)

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	events := make([]*ports.StoredEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, &ports.StoredEvent{
			ID:              r.ID,
			Type:            domain.EventType(r.Type),
			ApplicationID:   r.ApplicationID,
			SessionID:       r.SessionID,
			ViewID:          r.ViewID,
			DocumentVersion: r.DocumentVersion,
			Date:            r.Date,
			Payload:         json.RawMessage(r.Payload),
			CreatedAt:       r.CreatedAt,
		})
	}
	return events, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
