package core

import (
	"context"
	"sync"
	"time"
)

// Session represents a conversational container tracking the ordered message
// history, the optional system prompt and a mutable title. It is safe for
// concurrent access.
//
// Contract:
//   - Message order is insertion order (= conversational order)
//   - Messages returns a copy
//   - Mutations update the Updated timestamp
//   - Clone performs deep copies of slices for safe divergence.
type Session struct {
	ID           string    `json:"thread_id"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	History      []Message `json:"history"`
	Title        string    `json:"title,omitempty"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
	Expires      time.Time `json:"expires,omitzero"`
	mu           sync.RWMutex
}

// NewSession creates a new session with the given ID.
func NewSession(id, systemPrompt string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, SystemPrompt: systemPrompt, History: []Message{}, Created: now, Updated: now}
}

// AddMessage appends a message to the history updating Updated timestamp.
func (s *Session) AddMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, m)
	s.Updated = time.Now().UTC()
}

// Messages returns a copy of the message history.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]Message, len(s.History))
	copy(msgs, s.History)
	return msgs
}

// SetTitle replaces the session title.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Title = title
	s.Updated = time.Now().UTC()
}

// GetTitle returns the current title; empty when none was synthesized yet.
func (s *Session) GetTitle() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Title
}

// Touch moves the expiry to now+ttl. A zero ttl clears the expiry.
func (s *Session) Touch(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl <= 0 {
		s.Expires = time.Time{}
		return
	}
	s.Expires = time.Now().UTC().Add(ttl)
}

// Expired reports whether the session passed its expiry at time now.
func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.Expires.IsZero() && now.After(s.Expires)
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:           s.ID,
		SystemPrompt: s.SystemPrompt,
		History:      make([]Message, len(s.History)),
		Title:        s.Title,
		Created:      s.Created,
		Updated:      s.Updated,
		Expires:      s.Expires,
	}
	copy(clone.History, s.History)
	return clone
}

// SessionStore persists sessions and their evolving message history.
// Any method may fail with an error wrapping ErrStoreUnavailable when the
// backend cannot be reached. Lookups of unknown or expired identities return
// ErrSessionNotFound (Get, Delete) or ok=false (History).
type SessionStore interface {
	Create(ctx context.Context, systemPrompt string) (string, error)
	History(ctx context.Context, id string) ([]Message, bool, error)
	AppendMessage(ctx context.Context, id string, role Role, text string) error
	SetTitle(ctx context.Context, id, title string) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
