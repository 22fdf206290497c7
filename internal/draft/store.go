// ABOUTME: Durable draft storage keyed by (conversation, field) pairs.
// ABOUTME: SQLite implementation with automatic schema creation, absence means empty.

package draft

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Field names the two draft slots a conversation can hold.
type Field string

const (
	FieldReply Field = "reply"
	FieldNote  Field = "note"
)

// Draft is the unsent operator text for one conversation. A missing
// stored entry is equivalent to the empty string for that field.
type Draft struct {
	ConversationID string
	Reply          string
	Note           string
	UpdatedAt      time.Time
}

// Empty reports whether both fields are empty.
func (d Draft) Empty() bool {
	return d.Reply == "" && d.Note == ""
}

// Store is the persistence contract for drafts. Saving empty text removes
// the stored entry so empty drafts never leak.
type Store interface {
	Load(ctx context.Context, conversationID string) (Draft, error)
	Save(ctx context.Context, conversationID string, field Field, text string) error
	Delete(ctx context.Context, conversationID string, field Field) error
	Close() error
}

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the draft database at path. Parent
// directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "draftstore")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating draft directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening draft database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("draft store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS drafts (
			conversation_id TEXT NOT NULL,
			field TEXT NOT NULL,
			body TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (conversation_id, field)
		)
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating drafts table: %w", err)
	}
	return nil
}

// Load returns the draft for a conversation. Missing rows yield empty
// strings, never an error.
func (s *SQLiteStore) Load(ctx context.Context, conversationID string) (Draft, error) {
	query := `
		SELECT field, body, updated_at
		FROM drafts
		WHERE conversation_id = ?
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return Draft{}, fmt.Errorf("querying drafts: %w", err)
	}
	defer rows.Close()

	d := Draft{ConversationID: conversationID}
	for rows.Next() {
		var field, body, updatedStr string
		if err := rows.Scan(&field, &body, &updatedStr); err != nil {
			return Draft{}, fmt.Errorf("scanning draft row: %w", err)
		}

		switch Field(field) {
		case FieldReply:
			d.Reply = body
		case FieldNote:
			d.Note = body
		}

		if ts, err := time.Parse(time.RFC3339, updatedStr); err == nil && ts.After(d.UpdatedAt) {
			d.UpdatedAt = ts
		}
	}
	if err := rows.Err(); err != nil {
		return Draft{}, fmt.Errorf("iterating draft rows: %w", err)
	}

	return d, nil
}

// Save persists the text for one field. Empty text removes the stored
// entry instead of writing an empty row.
func (s *SQLiteStore) Save(ctx context.Context, conversationID string, field Field, text string) error {
	if text == "" {
		return s.Delete(ctx, conversationID, field)
	}

	query := `
		INSERT INTO drafts (conversation_id, field, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (conversation_id, field) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		conversationID,
		string(field),
		text,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}

	s.logger.Debug("draft saved", "conversation_id", conversationID, "field", field)
	return nil
}

// Delete removes the stored entry for one field. Deleting an absent row
// is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, conversationID string, field Field) error {
	query := `DELETE FROM drafts WHERE conversation_id = ? AND field = ?`

	if _, err := s.db.ExecContext(ctx, query, conversationID, string(field)); err != nil {
		return fmt.Errorf("deleting draft: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
