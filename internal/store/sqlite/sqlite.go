// Package sqlite stores sessions in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/store"
)

var _ store.Backend = (*Backend)(nil)

// Backend implements store.Backend with one row per session. Turns are kept
// as a JSON array so every save is a single-row overwrite.
type Backend struct {
	db *sql.DB
}

// Open creates (or opens) the database at dbPath and ensures the schema.
func Open(dbPath string) (*Backend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "create database directory")
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// a single writer connection avoids SQLITE_BUSY between our own goroutines
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	b := &Backend{db: db}
	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}
	return b, nil
}

func (b *Backend) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		messages_json TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_created ON chat_sessions(created_at);
	`
	_, err := b.db.Exec(query)
	return err
}

// Load reads one session row.
func (b *Backend) Load(ctx context.Context, id string) (*chat.Session, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, messages_json FROM chat_sessions WHERE id = ?`, id)

	var (
		session      chat.Session
		createdAt    int64
		messagesJSON string
	)
	err := row.Scan(&session.ID, &session.Title, &createdAt, &messagesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "scan session %s", id)
	}

	if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
		return nil, errors.Wrapf(err, "decode turns of session %s", id)
	}
	session.CreatedAt = fromUnixNano(createdAt)
	return &session, nil
}

// Save upserts the full session row.
func (b *Backend) Save(ctx context.Context, session *chat.Session) error {
	turns := session.Messages
	if turns == nil {
		turns = []chat.Turn{}
	}
	messagesJSON, err := json.Marshal(turns)
	if err != nil {
		return errors.Wrapf(err, "encode turns of session %s", session.ID)
	}

	query := `
	INSERT INTO chat_sessions (id, title, created_at, messages_json)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		created_at = excluded.created_at,
		messages_json = excluded.messages_json`

	if _, err := b.db.ExecContext(ctx, query,
		session.ID, session.Title, toUnixNano(session.CreatedAt), string(messagesJSON),
	); err != nil {
		return errors.Wrapf(err, "upsert session %s", session.ID)
	}
	return nil
}

// Delete removes a session row.
func (b *Backend) Delete(ctx context.Context, id string) error {
	result, err := b.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "delete session %s", id)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "get rows affected")
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List returns id, title and created_at of every row.
func (b *Backend) List(ctx context.Context) ([]chat.Summary, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id, title, created_at FROM chat_sessions`)
	if err != nil {
		return nil, errors.Wrap(err, "query sessions")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Printf("[store] failed to close session rows: %v", closeErr)
		}
	}()

	summaries := []chat.Summary{}
	for rows.Next() {
		var (
			summary   chat.Summary
			createdAt int64
		)
		if err := rows.Scan(&summary.ID, &summary.Title, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan session row")
		}
		summary.CreatedAt = fromUnixNano(createdAt)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate sessions")
	}
	return summaries, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	if err := b.db.Close(); err != nil {
		return errors.Wrap(err, "close database")
	}
	return nil
}

func toUnixNano(ts chat.Timestamp) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.UnixNano()
}

func fromUnixNano(n int64) chat.Timestamp {
	if n == 0 {
		return chat.Timestamp{}
	}
	return chat.NewTimestamp(time.Unix(0, n))
}
