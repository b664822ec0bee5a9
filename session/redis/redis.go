// Package redis provides a core.SessionStore backed by Redis.
//
// Layout per session:
//
//	chat:session:<id>           hash  system_prompt, title, created, updated
//	chat:session:<id>:messages  list  JSON encoded core.Message values
//
// Both keys share one TTL which every write refreshes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/hupe1980/chatmesh/core"
)

const (
	// DefaultKeyPrefix namespaces every key the store writes.
	DefaultKeyPrefix = "chat:session:"
	// DefaultTTL is the idle lifetime of a session.
	DefaultTTL = time.Hour

	maxTxRetries = 10
)

// Options configure the Redis session store.
type Options struct {
	KeyPrefix string
	TTL       time.Duration
	// PingTimeout bounds the connectivity check done on construction.
	PingTimeout time.Duration
}

// Store implements core.SessionStore on top of a go-redis client.
type Store struct {
	client *goredis.Client
	opts   Options
}

var _ core.SessionStore = (*Store)(nil)

// New wraps an existing client and verifies connectivity.
func New(ctx context.Context, client *goredis.Client, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		KeyPrefix:   DefaultKeyPrefix,
		TTL:         DefaultTTL,
		PingTimeout: 5 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, unavailable("ping", err)
	}

	return &Store{client: client, opts: opts}, nil
}

// NewFromURL parses a redis:// URL, dials it and verifies connectivity.
func NewFromURL(ctx context.Context, url string, optFns ...func(o *Options)) (*Store, error) {
	redisOpts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(redisOpts)
	store, err := New(ctx, client, optFns...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }

// Create allocates a new session hash.
func (s *Store) Create(ctx context.Context, systemPrompt string) (string, error) {
	id := core.NewID()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.sessionKey(id),
			"system_prompt", systemPrompt,
			"title", "",
			"created", now,
			"updated", now,
		)
		s.expire(ctx, pipe, id)
		return nil
	})
	if err != nil {
		return "", unavailable("create", err)
	}
	return id, nil
}

// History returns the stored messages; ok is false for unknown or expired sessions.
func (s *Store) History(ctx context.Context, id string) ([]core.Message, bool, error) {
	exists, err := s.exists(ctx, id)
	if err != nil || !exists {
		return nil, false, err
	}
	msgs, err := s.messages(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return msgs, true, nil
}

// AppendMessage pushes one message and refreshes the session TTL.
func (s *Store) AppendMessage(ctx context.Context, id string, role core.Role, text string) error {
	if !role.Valid() {
		return fmt.Errorf("%w %q", core.ErrInvalidRole, role)
	}
	data, err := json.Marshal(core.Message{Role: role, Content: text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return s.update(ctx, "append", id, func(pipe goredis.Pipeliner) {
		pipe.RPush(ctx, s.messagesKey(id), data)
		pipe.HSet(ctx, s.sessionKey(id), "updated", time.Now().UTC().Format(time.RFC3339Nano))
	})
}

// SetTitle replaces the session title.
func (s *Store) SetTitle(ctx context.Context, id, title string) error {
	return s.update(ctx, "set title", id, func(pipe goredis.Pipeliner) {
		pipe.HSet(ctx, s.sessionKey(id),
			"title", title,
			"updated", time.Now().UTC().Format(time.RFC3339Nano),
		)
	})
}

// Get loads the full session snapshot.
func (s *Store) Get(ctx context.Context, id string) (*core.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return nil, unavailable("get", err)
	}
	if len(fields) == 0 {
		return nil, core.ErrSessionNotFound
	}

	msgs, err := s.messages(ctx, id)
	if err != nil {
		return nil, err
	}

	sess := core.NewSession(id, fields["system_prompt"])
	sess.Title = fields["title"]
	sess.History = msgs
	sess.Created = parseTime(fields["created"])
	sess.Updated = parseTime(fields["updated"])

	ttl, err := s.client.TTL(ctx, s.sessionKey(id)).Result()
	if err == nil && ttl > 0 {
		sess.Expires = time.Now().UTC().Add(ttl)
	}
	return sess, nil
}

// Delete removes both keys of the session.
func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.sessionKey(id), s.messagesKey(id)).Result()
	if err != nil {
		return unavailable("delete", err)
	}
	if n == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

// update runs write against an existing session with the session hash
// watched. A concurrent Delete or expiry aborts the transaction; the retry
// then reports ErrSessionNotFound.
func (s *Store) update(ctx context.Context, op, id string, write func(pipe goredis.Pipeliner)) error {
	key := s.sessionKey(id)
	txf := func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%s on %s: %w", op, id, core.ErrSessionNotFound)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			write(pipe)
			s.expire(ctx, pipe, id)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrSessionNotFound):
		return err
	default:
		return unavailable(op, err)
	}
}

func (s *Store) exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return false, unavailable("exists", err)
	}
	return n > 0, nil
}

func (s *Store) messages(ctx context.Context, id string) ([]core.Message, error) {
	raw, err := s.client.LRange(ctx, s.messagesKey(id), 0, -1).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, unavailable("load messages", err)
	}

	msgs := make([]core.Message, 0, len(raw))
	for _, item := range raw {
		var m core.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *Store) expire(ctx context.Context, pipe goredis.Pipeliner, id string) {
	if s.opts.TTL <= 0 {
		return
	}
	pipe.Expire(ctx, s.sessionKey(id), s.opts.TTL)
	pipe.Expire(ctx, s.messagesKey(id), s.opts.TTL)
}

func (s *Store) sessionKey(id string) string  { return s.opts.KeyPrefix + id }
func (s *Store) messagesKey(id string) string { return s.opts.KeyPrefix + id + ":messages" }

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %v", core.ErrStoreUnavailable, op, err)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
