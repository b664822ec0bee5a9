package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/hupe1980/chatmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, optFns ...func(o *Options)) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(context.Background(), client, optFns...)
	require.NoError(t, err)
	return store, mr
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	id, err := store.Create(ctx, "be brief")
	require.NoError(t, err)
	assert.True(t, mr.Exists(DefaultKeyPrefix+id))

	require.NoError(t, store.AppendMessage(ctx, id, core.RoleUser, "hi"))
	require.NoError(t, store.AppendMessage(ctx, id, core.RoleAssistant, "hello"))
	require.NoError(t, store.SetTitle(ctx, id, "greeting"))

	msgs, ok, err := store.History(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []core.Message{
		core.NewUserMessage("hi"),
		core.NewAssistantMessage("hello"),
	}, msgs)

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, sess.ID)
	assert.Equal(t, "be brief", sess.SystemPrompt)
	assert.Equal(t, "greeting", sess.Title)
	assert.Len(t, sess.History, 2)
	assert.False(t, sess.Created.IsZero())
	assert.False(t, sess.Expires.IsZero())

	require.NoError(t, store.Delete(ctx, id))
	assert.False(t, mr.Exists(DefaultKeyPrefix+id))
	assert.ErrorIs(t, store.Delete(ctx, id), core.ErrSessionNotFound)
}

func TestStore_UnknownSession(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, ok, err := store.History(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.ErrorIs(t, store.AppendMessage(ctx, "missing", core.RoleUser, "x"), core.ErrSessionNotFound)
	assert.ErrorIs(t, store.SetTitle(ctx, "missing", "x"), core.ErrSessionNotFound)
}

func TestStore_TTLRefreshedOnWrite(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, func(o *Options) { o.TTL = time.Minute })

	id, err := store.Create(ctx, "")
	require.NoError(t, err)

	mr.FastForward(40 * time.Second)
	require.NoError(t, store.AppendMessage(ctx, id, core.RoleUser, "hi"))
	mr.FastForward(40 * time.Second)

	_, ok, err := store.History(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.History(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	id, err := store.Create(ctx, "")
	require.NoError(t, err)

	mr.Close()

	_, err = store.Create(ctx, "")
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	_, _, err = store.History(ctx, id)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}

func TestNewFromURL_PingFailure(t *testing.T) {
	_, err := NewFromURL(context.Background(), "redis://127.0.0.1:1/0", func(o *Options) {
		o.PingTimeout = 200 * time.Millisecond
	})
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)

	_, err = NewFromURL(context.Background(), "::not a url")
	assert.Error(t, err)
}

func TestStore_AppendAfterDeleteLeavesNoMessages(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	id, err := store.Create(ctx, "")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, id))

	assert.ErrorIs(t, store.AppendMessage(ctx, id, core.RoleUser, "late"), core.ErrSessionNotFound)
	assert.ErrorIs(t, store.SetTitle(ctx, id, "late"), core.ErrSessionNotFound)
	assert.False(t, mr.Exists(DefaultKeyPrefix+id))
	assert.False(t, mr.Exists(DefaultKeyPrefix+id+":messages"))
}

func TestStore_AppendRacingDelete(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	for round := 0; round < 20; round++ {
		id, err := store.Create(ctx, "")
		require.NoError(t, err)

		var (
			wg   sync.WaitGroup
			errs []error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if err := store.AppendMessage(ctx, id, core.RoleUser, "hi"); err != nil {
					errs = append(errs, err)
				}
			}
		}()
		go func() {
			defer wg.Done()
			_ = store.Delete(ctx, id)
		}()
		wg.Wait()

		for _, err := range errs {
			assert.ErrorIs(t, err, core.ErrSessionNotFound)
		}
		assert.False(t, mr.Exists(DefaultKeyPrefix+id))
		assert.False(t, mr.Exists(DefaultKeyPrefix+id+":messages"), "orphaned message list in round %d", round)
	}
}
