package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/chatmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	id, err := store.Create(ctx, "be brief")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs, ok, err := store.History(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, msgs)

	require.NoError(t, store.AppendMessage(ctx, id, core.RoleUser, "hi"))
	require.NoError(t, store.AppendMessage(ctx, id, core.RoleAssistant, "hello"))
	require.NoError(t, store.SetTitle(ctx, id, "greeting"))

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "be brief", sess.SystemPrompt)
	assert.Equal(t, "greeting", sess.GetTitle())
	assert.Equal(t, []core.Message{
		core.NewUserMessage("hi"),
		core.NewAssistantMessage("hello"),
	}, sess.Messages())

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(ctx, id), core.ErrSessionNotFound)
}

func TestInMemoryStore_UnknownSession(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	_, ok, err := store.History(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, store.AppendMessage(ctx, "missing", core.RoleUser, "x"), core.ErrSessionNotFound)
	assert.ErrorIs(t, store.SetTitle(ctx, "missing", "x"), core.ErrSessionNotFound)
}

func TestInMemoryStore_InvalidRole(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	id, _ := store.Create(ctx, "")

	assert.Error(t, store.AppendMessage(ctx, id, core.Role("tool"), "x"))
}

func TestInMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	now := time.Now().UTC()
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	store := NewInMemoryStore(func(o *InMemoryOptions) {
		o.TTL = time.Minute
		o.Now = clock
	})

	id, err := store.Create(ctx, "")
	require.NoError(t, err)

	advance(2 * time.Minute)

	_, ok, err := store.History(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, store.Purge())
	assert.Equal(t, 0, store.Len())
}

func TestInMemoryStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	id, _ := store.Create(ctx, "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.AppendMessage(ctx, id, core.RoleUser, fmt.Sprintf("m%d", i)))
		}(i)
	}
	wg.Wait()

	msgs, ok, err := store.History(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, msgs, 50)

	seen := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		assert.False(t, seen[m.Content], "duplicate %s", m.Content)
		seen[m.Content] = true
	}
}
