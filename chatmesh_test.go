package chatmesh

import (
	"context"
	"testing"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/internal/testutil"
	"github.com/hupe1980/chatmesh/memory"
	"github.com/hupe1980/chatmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatMesh_ChatAndSessions(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.SetScript(model.Delta{Content: "Hi"})
	m.SetCompletion("Greeting", nil)

	mesh := New(func(o *Options) {
		o.Models = model.NewRegistry(m)
	})

	events, err := mesh.ChatSync(context.Background(), Request{Query: "Hello"})
	require.NoError(t, err)

	threadID := events[0].ThreadID
	sess, err := mesh.GetSession(context.Background(), threadID)
	require.NoError(t, err)
	assert.Equal(t, "Greeting", sess.Title)
	assert.Len(t, sess.Messages(), 2)

	require.NoError(t, mesh.DeleteSession(context.Background(), threadID))
	_, err = mesh.GetSession(context.Background(), threadID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.ErrorIs(t, mesh.DeleteSession(context.Background(), threadID), core.ErrSessionNotFound)
}

func TestChatMesh_EphemeralWithoutStore(t *testing.T) {
	mesh := New(func(o *Options) { o.SessionStore = nil })

	_, ch, err := mesh.Chat(context.Background(), Request{Query: "Hello"})
	require.NoError(t, err)
	var events []core.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	require.NotEmpty(t, events)

	_, err = mesh.GetSession(context.Background(), events[0].ThreadID)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}

func TestChatMesh_KnowledgeStoreRetrieval(t *testing.T) {
	kb := memory.NewInMemoryStore()
	_, err := kb.Store("kb1", core.Document{Filename: "go.md", Text: "Go channels"})
	require.NoError(t, err)

	mesh := New(func(o *Options) { o.KnowledgeStore = kb })

	events, err := mesh.ChatSync(context.Background(), Request{Query: "channels", Meta: core.Metadata{"db_id": "kb1"}})
	require.NoError(t, err)

	gen, ok := testutil.Find(events, core.StatusGenerating)
	require.True(t, ok)
	require.Len(t, gen.RetrievedDocs, 1)
	assert.Equal(t, "go.md", gen.RetrievedDocs[0].Filename)
}

func TestChatMesh_Call(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.SetCompletion("pong", nil)
	mesh := New(func(o *Options) { o.Models = model.NewRegistry(m) })

	out, err := mesh.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
}
