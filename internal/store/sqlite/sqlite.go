// Package sqlite stores chat sessions in SQLite through the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"supportbot/internal/domain"
	"supportbot/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES chat_sessions(id),
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	timestamp  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);
`

// Storage is a SQLite-backed conversation store. Message ids are assigned in
// insertion order and define history order.
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file (and its directory) if needed and applies the schema.
func Open(path string) (*Storage, error) {
	if path == "" {
		path = "supportbot.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Storage{db: db, now: time.Now}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("execute %s: %w", p, err)
		}
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Storage) EnsureSession(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := s.ensure(ctx, s.db, id); err != nil {
		return "", err
	}
	return id, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Storage) ensure(ctx context.Context, db execer, id string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chat_sessions (id, created_at) VALUES (?, ?)`,
		id, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Storage) Append(ctx context.Context, sessionID string, role domain.Role, content string) (domain.Turn, error) {
	if err := store.ValidateAppend(sessionID, role); err != nil {
		return domain.Turn{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.ensure(ctx, tx, sessionID); err != nil {
		return domain.Turn{}, err
	}
	ts := s.now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, timestamp) VALUES (?, ?, ?, ?)`,
		sessionID, string(role), content, ts.Format(time.RFC3339Nano))
	if err != nil {
		return domain.Turn{}, fmt.Errorf("insert message: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return domain.Turn{}, fmt.Errorf("message id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Turn{}, fmt.Errorf("commit: %w", err)
	}
	return domain.Turn{Role: role, Content: content, Timestamp: ts, Seq: seq}, nil
}

func (s *Storage) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, timestamp FROM messages WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	turns := []domain.Turn{}
	for rows.Next() {
		var (
			t    domain.Turn
			role string
			ts   string
		)
		if err := rows.Scan(&t.Seq, &role, &t.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		t.Role = domain.Role(role)
		if t.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// SessionExists reports whether a session row exists for id.
func (s *Storage) SessionExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chat_sessions WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query session: %w", err)
	}
	return n > 0, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
