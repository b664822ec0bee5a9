package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/chatmesh/core"
)

// DefaultExpire is the idle lifetime of a session when no TTL is configured.
const DefaultExpire = time.Hour

// InMemoryOptions configure an InMemoryStore.
type InMemoryOptions struct {
	// TTL is the idle lifetime of a session; every write refreshes it.
	// Zero or negative disables expiry.
	TTL time.Duration
	// Now is the clock used for expiry decisions.
	Now func() time.Time
}

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access and best
// suited for tests or ephemeral demo servers. Each returned session is cloned
// to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	opts     InMemoryOptions
}

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{
		TTL: DefaultExpire,
		Now: func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{sessions: make(map[string]*core.Session), opts: opts}
}

// Create allocates a new session seeded with the optional system prompt.
func (s *InMemoryStore) Create(_ context.Context, systemPrompt string) (string, error) {
	id := core.NewID()
	sess := core.NewSession(id, systemPrompt)
	sess.Touch(s.opts.TTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
	return id, nil
}

// History returns a copy of the stored messages; ok is false for unknown or
// expired sessions.
func (s *InMemoryStore) History(_ context.Context, id string) ([]core.Message, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.liveLocked(id)
	if !ok {
		return nil, false, nil
	}
	return sess.Messages(), true, nil
}

// AppendMessage adds a message to an existing session and refreshes its expiry.
func (s *InMemoryStore) AppendMessage(_ context.Context, id string, role core.Role, text string) error {
	if !role.Valid() {
		return fmt.Errorf("%w %q", core.ErrInvalidRole, role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.liveLocked(id)
	if !ok {
		return fmt.Errorf("append to %s: %w", id, core.ErrSessionNotFound)
	}
	sess.AddMessage(core.Message{Role: role, Content: text})
	sess.Touch(s.opts.TTL)
	return nil
}

// SetTitle replaces the title of an existing session.
func (s *InMemoryStore) SetTitle(_ context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.liveLocked(id)
	if !ok {
		return fmt.Errorf("set title on %s: %w", id, core.ErrSessionNotFound)
	}
	sess.SetTitle(title)
	sess.Touch(s.opts.TTL)
	return nil
}

// Get returns a clone of the session.
func (s *InMemoryStore) Get(_ context.Context, id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.liveLocked(id)
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Delete removes the session. Unknown or expired ids yield ErrSessionNotFound.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liveLocked(id); !ok {
		delete(s.sessions, id)
		return core.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Purge drops every expired session and returns how many were removed.
func (s *InMemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.Now()
	n := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len reports the number of stored sessions, expired ones included.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// liveLocked looks up a non-expired session; caller must hold the lock.
func (s *InMemoryStore) liveLocked(id string) (*core.Session, bool) {
	sess, ok := s.sessions[id]
	if !ok || sess.Expired(s.opts.Now()) {
		return nil, false
	}
	return sess, true
}
