package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, ev StreamEvent) map[string]any {
	t.Helper()
	b, err := ev.Encode()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestStreamEvent_BaseFields(t *testing.T) {
	ev := NewStreamEvent(StatusGenerating, "t1", Metadata{"db_id": "kb1"})
	out := decode(t, ev)

	assert.Equal(t, "generating", out["status"])
	assert.Equal(t, "t1", out["thread_id"])
	assert.Contains(t, out, "response")
	assert.Nil(t, out["response"])
	assert.Equal(t, map[string]any{"db_id": "kb1"}, out["meta"])
	assert.NotContains(t, out, "retrieved_docs")
	assert.NotContains(t, out, "history")
}

func TestStreamEvent_EmptyRetrievedDocsAreKept(t *testing.T) {
	ev := NewStreamEvent(StatusGenerating, "t1", nil)
	ev.RetrievedDocs = []RetrievedItem{}
	out := decode(t, ev)
	assert.Equal(t, []any{}, out["retrieved_docs"])
}

func TestStreamEvent_FinishedAlwaysHasHistory(t *testing.T) {
	out := decode(t, NewStreamEvent(StatusFinished, "t1", nil))
	assert.Equal(t, []any{}, out["history"])

	ev := NewStreamEvent(StatusFinished, "t1", nil)
	ev.History = []Message{NewUserMessage("q"), NewAssistantMessage("a")}
	out = decode(t, ev)
	assert.Len(t, out["history"], 2)
}

func TestStreamEvent_LoadingCarriesResponse(t *testing.T) {
	text := "chunk"
	ev := NewStreamEvent(StatusLoading, "t1", nil)
	ev.Response = &text
	assert.Equal(t, "chunk", ev.Text())
	assert.Equal(t, "chunk", decode(t, ev)["response"])
	assert.False(t, ev.IsTerminal())
}

func TestStreamEvent_EncodeSSE(t *testing.T) {
	ev := NewStreamEvent(StatusError, "t1", nil)
	ev.Message = "Model error: boom"
	b, err := ev.EncodeSSE()
	require.NoError(t, err)

	s := string(b)
	assert.True(t, strings.HasPrefix(s, "data: {"))
	assert.True(t, strings.HasSuffix(s, "}\n\n"))
	assert.Contains(t, s, `"message":"Model error: boom"`)
	assert.True(t, ev.IsTerminal())
}

func TestNewID_Unique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
