package session_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/session"
	"github.com/hupe1980/chatmesh/session/redis"
	"github.com/hupe1980/chatmesh/session/sqlite"
)

// every backend must produce the same session for the same operations
func TestStores_Conformance(t *testing.T) {
	ctx := context.Background()

	stores := map[string]func(t *testing.T) core.SessionStore{
		"memory": func(t *testing.T) core.SessionStore { return session.NewInMemoryStore() },
		"sqlite": func(t *testing.T) core.SessionStore {
			s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "s.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"redis": func(t *testing.T) core.SessionStore {
			mr := miniredis.RunT(t)
			s, err := redis.New(ctx, goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}

	want := &core.Session{
		SystemPrompt: "be brief",
		Title:        "Greeting",
		History: []core.Message{
			core.NewUserMessage("hi"),
			core.NewAssistantMessage("hello"),
			core.NewUserMessage("多轮"),
			core.NewAssistantMessage(""),
		},
	}
	opts := cmp.Options{
		cmpopts.IgnoreUnexported(core.Session{}),
		cmpopts.IgnoreFields(core.Session{}, "ID", "Created", "Updated", "Expires"),
		cmpopts.EquateEmpty(),
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)

			id, err := store.Create(ctx, want.SystemPrompt)
			require.NoError(t, err)
			for _, m := range want.History {
				require.NoError(t, store.AppendMessage(ctx, id, m.Role, m.Content))
			}
			require.NoError(t, store.SetTitle(ctx, id, want.Title))

			got, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, id, got.ID)
			if diff := cmp.Diff(want, got, opts); diff != "" {
				t.Errorf("session mismatch (-want +got):\n%s", diff)
			}

			history, ok, err := store.History(ctx, id)
			require.NoError(t, err)
			require.True(t, ok)
			if diff := cmp.Diff(want.History, history); diff != "" {
				t.Errorf("history mismatch (-want +got):\n%s", diff)
			}

			assert.ErrorIs(t, store.AppendMessage(ctx, id, core.Role("tool"), "x"), core.ErrInvalidRole)
			require.NoError(t, store.Delete(ctx, id))
			_, err = store.Get(ctx, id)
			assert.ErrorIs(t, err, core.ErrSessionNotFound)
		})
	}
}
