package testutil

import (
	"context"
	"testing"

	"github.com/hupe1980/chatmesh/core"
	"github.com/stretchr/testify/require"
)

// SessionBuilder seeds a session into a store with fluent chaining.
// Example:
//
//	id := NewSessionBuilder(store).SystemPrompt("be brief").User("hi").Assistant("hello").Build(t)
type SessionBuilder struct {
	store        core.SessionStore
	systemPrompt string
	title        string
	messages     []core.Message
}

// NewSessionBuilder creates a new builder writing into store.
func NewSessionBuilder(store core.SessionStore) *SessionBuilder {
	return &SessionBuilder{store: store}
}

// SystemPrompt sets the system prompt the session is created with (chainable).
func (b *SessionBuilder) SystemPrompt(prompt string) *SessionBuilder {
	b.systemPrompt = prompt
	return b
}

// Title sets the session title (chainable).
func (b *SessionBuilder) Title(title string) *SessionBuilder {
	b.title = title
	return b
}

// User appends a user message (chainable).
func (b *SessionBuilder) User(text string) *SessionBuilder {
	b.messages = append(b.messages, core.NewUserMessage(text))
	return b
}

// Assistant appends an assistant message (chainable).
func (b *SessionBuilder) Assistant(text string) *SessionBuilder {
	b.messages = append(b.messages, core.NewAssistantMessage(text))
	return b
}

// Round appends a user/assistant pair (chainable).
func (b *SessionBuilder) Round(user, assistant string) *SessionBuilder {
	return b.User(user).Assistant(assistant)
}

// Build creates the session in the store and returns its id.
func (b *SessionBuilder) Build(t testing.TB) string {
	t.Helper()
	ctx := context.Background()

	id, err := b.store.Create(ctx, b.systemPrompt)
	require.NoError(t, err)

	for _, m := range b.messages {
		require.NoError(t, b.store.AppendMessage(ctx, id, m.Role, m.Content))
	}
	if b.title != "" {
		require.NoError(t, b.store.SetTitle(ctx, id, b.title))
	}
	return id
}
