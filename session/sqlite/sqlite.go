// Package sqlite provides a durable core.SessionStore on top of the cgo-free
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/chatmesh/core"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	system_prompt TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL DEFAULT '',
	created       INTEGER NOT NULL,
	updated       INTEGER NOT NULL,
	expires       INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
`

// Options configure the SQLite store.
type Options struct {
	// TTL is the idle lifetime of a session. Zero disables expiry.
	TTL time.Duration
	Now func() time.Time
}

// Store persists sessions in a SQLite database.
type Store struct {
	db   *sql.DB
	opts Options
}

var _ core.SessionStore = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		TTL: time.Hour,
		Now: func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases coherent and
	// serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, opts: opts}, nil
}

// dsn enables foreign keys on every connection the pool opens.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)"
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Create inserts a new session row.
func (s *Store) Create(ctx context.Context, systemPrompt string) (string, error) {
	id := core.NewID()
	now := s.opts.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, system_prompt, created, updated, expires) VALUES (?, ?, ?, ?, ?)`,
		id, systemPrompt, now.UnixNano(), now.UnixNano(), s.expiry(now))
	if err != nil {
		return "", unavailable("create", err)
	}
	return id, nil
}

// History returns the stored messages in insertion order.
func (s *Store) History(ctx context.Context, id string) ([]core.Message, bool, error) {
	live, err := s.live(ctx, id)
	if err != nil || !live {
		return nil, false, err
	}
	msgs, err := s.messages(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return msgs, true, nil
}

// AppendMessage inserts one message and refreshes the expiry in a single transaction.
func (s *Store) AppendMessage(ctx context.Context, id string, role core.Role, text string) error {
	if !role.Valid() {
		return fmt.Errorf("%w %q", core.ErrInvalidRole, role)
	}
	return s.touch(ctx, id, "append", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)`, id, string(role), text)
		return err
	})
}

// SetTitle replaces the session title.
func (s *Store) SetTitle(ctx context.Context, id, title string) error {
	return s.touch(ctx, id, "set title", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE sessions SET title = ? WHERE id = ?`, title, id)
		return err
	})
}

// Get loads the session row and its messages.
func (s *Store) Get(ctx context.Context, id string) (*core.Session, error) {
	var (
		systemPrompt, title       string
		created, updated, expires int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT system_prompt, title, created, updated, expires FROM sessions WHERE id = ?`, id).
		Scan(&systemPrompt, &title, &created, &updated, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	if s.expired(expires) {
		return nil, core.ErrSessionNotFound
	}

	msgs, err := s.messages(ctx, id)
	if err != nil {
		return nil, err
	}

	sess := core.NewSession(id, systemPrompt)
	sess.Title = title
	sess.History = msgs
	sess.Created = time.Unix(0, created).UTC()
	sess.Updated = time.Unix(0, updated).UTC()
	if expires > 0 {
		sess.Expires = time.Unix(0, expires).UTC()
	}
	return sess, nil
}

// Delete removes the session and, through the cascade, its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return unavailable("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete", err)
	}
	if n == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

// PurgeExpired deletes every expired session and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires > 0 AND expires < ?`, s.opts.Now().UnixNano())
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return res.RowsAffected()
}

// touch runs fn inside a transaction after checking the session is live,
// then bumps updated/expires.
func (s *Store) touch(ctx context.Context, id, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var expires int64
	err = tx.QueryRowContext(ctx, `SELECT expires FROM sessions WHERE id = ?`, id).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && s.expired(expires)) {
		return fmt.Errorf("%s %s: %w", op, id, core.ErrSessionNotFound)
	}
	if err != nil {
		return unavailable(op, err)
	}

	if err := fn(tx); err != nil {
		return unavailable(op, err)
	}

	now := s.opts.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated = ?, expires = ? WHERE id = ?`, now.UnixNano(), s.expiry(now), id); err != nil {
		return unavailable(op, err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable(op, err)
	}
	return nil
}

func (s *Store) live(ctx context.Context, id string) (bool, error) {
	var expires int64
	err := s.db.QueryRowContext(ctx, `SELECT expires FROM sessions WHERE id = ?`, id).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("lookup", err)
	}
	return !s.expired(expires), nil
}

func (s *Store) messages(ctx context.Context, id string) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM messages WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, unavailable("load messages", err)
	}
	defer rows.Close()

	msgs := []core.Message{}
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, unavailable("scan message", err)
		}
		msgs = append(msgs, core.Message{Role: core.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("load messages", err)
	}
	return msgs, nil
}

func (s *Store) expiry(now time.Time) int64 {
	if s.opts.TTL <= 0 {
		return 0
	}
	return now.Add(s.opts.TTL).UnixNano()
}

func (s *Store) expired(expires int64) bool {
	return expires > 0 && s.opts.Now().UnixNano() > expires
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: sqlite %s: %v", core.ErrStoreUnavailable, op, err)
}
