package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
)

// Resolution is the outcome of resolving the session identity for one turn.
type Resolution struct {
	// ThreadID is the identity every event of the turn carries.
	ThreadID string
	// History is the effective prior conversation (system turns excluded).
	History []core.Message
	// IsNew reports whether the turn opens a new conversation.
	IsNew bool
	// Persisted is false for ephemeral identities synthesized locally; writes
	// for them are skipped.
	Persisted bool
}

// ManagerOptions configure a Manager.
type ManagerOptions struct {
	Logger logging.Logger
}

// Manager is the fail-soft facade over a core.SessionStore. A nil store is
// treated as permanently unavailable.
type Manager struct {
	store  core.SessionStore
	logger logging.Logger
}

// NewManager wraps store. Passing a nil store yields a Manager that only
// hands out ephemeral identities.
func NewManager(store core.SessionStore, optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{store: store, logger: opts.Logger}
}

// Available reports whether a store is wired.
func (m *Manager) Available() bool { return m != nil && m.store != nil }

// Resolve establishes the thread identity and effective history for a turn.
//
// A supplied thread id is kept as is; its persisted history is used unless
// the caller passed a non-empty explicit history. Without a thread id a new
// session is created in the store. When the store is missing or creation
// fails a random identity is synthesized and never persisted.
func (m *Manager) Resolve(ctx context.Context, threadID string, explicit []core.Message, systemPrompt string) Resolution {
	res := Resolution{ThreadID: threadID, History: core.CloneMessages(explicit)}

	switch {
	case threadID != "" && m.Available():
		res.Persisted = true
		cached, _ := safe(ctx, m, "get_history", func() ([]core.Message, error) {
			msgs, ok, err := m.store.History(ctx, threadID)
			if err != nil || !ok {
				return nil, err
			}
			return msgs, nil
		})
		if len(cached) > 0 && len(explicit) == 0 {
			res.History = cached
			m.logger.Debug("Using cached history", "thread_id", threadID, "messages", len(cached))
		}
	case threadID == "" && m.Available():
		id, ok := safe(ctx, m, "create_session", func() (string, error) {
			return m.store.Create(ctx, systemPrompt)
		})
		if ok && id != "" {
			res.ThreadID = id
			res.IsNew = true
			res.Persisted = true
			m.logger.Debug("Created new session", "thread_id", id)
		}
	}

	if res.ThreadID == "" {
		res.ThreadID = core.NewID()
		res.IsNew = true
		res.Persisted = false
		m.logger.Debug("Generated temporary thread id", "thread_id", res.ThreadID)
	}

	return res
}

// AppendMessage records one message best-effort.
func (m *Manager) AppendMessage(ctx context.Context, res Resolution, role core.Role, text string) {
	if !res.Persisted || !m.Available() {
		return
	}
	safe(ctx, m, "add_message", func() (struct{}, error) {
		return struct{}{}, m.store.AppendMessage(ctx, res.ThreadID, role, text)
	})
}

// SetTitle stores the session title best-effort.
func (m *Manager) SetTitle(ctx context.Context, res Resolution, title string) {
	if !res.Persisted || !m.Available() {
		return
	}
	safe(ctx, m, "update_session_title", func() (struct{}, error) {
		return struct{}{}, m.store.SetTitle(ctx, res.ThreadID, title)
	})
}

// Fetch returns the stored session. Unlike the turn-time operations it
// surfaces core.ErrStoreUnavailable and core.ErrSessionNotFound.
func (m *Manager) Fetch(ctx context.Context, threadID string) (*core.Session, error) {
	if !m.Available() {
		return nil, core.ErrStoreUnavailable
	}
	sess, err := m.store.Get(ctx, threadID)
	if err != nil {
		return nil, classify(err)
	}
	if sess == nil {
		return nil, core.ErrSessionNotFound
	}
	return sess, nil
}

// Remove deletes the stored session; errors are classified like Fetch.
func (m *Manager) Remove(ctx context.Context, threadID string) error {
	if !m.Available() {
		return core.ErrStoreUnavailable
	}
	if err := m.store.Delete(ctx, threadID); err != nil {
		return classify(err)
	}
	return nil
}

// classify keeps the two boundary-facing sentinels and folds any other
// failure into ErrStoreUnavailable.
func classify(err error) error {
	if errors.Is(err, core.ErrSessionNotFound) || errors.Is(err, core.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
}

// safe runs one store operation, turning errors and panics into a logged
// zero result. ok is false whenever the operation did not succeed.
func safe[T any](ctx context.Context, m *Manager, op string, fn func() (T, error)) (result T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result, ok = zero, false
			m.storeFailure(op, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return result, false
	}

	v, err := fn()
	if err != nil {
		m.storeFailure(op, err)
		var zero T
		return zero, false
	}
	return v, true
}

func (m *Manager) storeFailure(op string, err error) {
	if cl, ok := m.logger.(*logging.ChatLogger); ok {
		cl.WithComponent("session").LogStoreFailure(op, err)
		return
	}
	m.logger.Warn("Session store operation failed", "operation", op, "error", err)
}
