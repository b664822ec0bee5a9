package memory

import (
	"sync"
	"testing"

	"github.com/hupe1980/chatmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_StoreSearchDelete(t *testing.T) {
	svc := NewInMemoryStore()

	id1, err := svc.Store("kb1", core.Document{Filename: "go.md", Text: "Go has goroutines and channels"})
	require.NoError(t, err)
	id2, err := svc.Store("kb1", core.Document{Filename: "rust.md", Text: "Rust has ownership"})
	require.NoError(t, err)
	_, err = svc.Store("kb2", core.Document{Text: "unrelated goroutines"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	res, err := svc.Search("kb1", "goroutines channels", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, id1, res[0].ID)
	assert.Equal(t, "go.md", res[0].Filename)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)

	res, err = svc.Search("kb1", "HAS ownership", 10)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, id2, res[0].ID, "full match ranks first")
	assert.InDelta(t, 0.5, res[1].Score, 1e-9)

	res, err = svc.Search("kb1", "", 1)
	require.NoError(t, err)
	assert.Len(t, res, 1)
	assert.Equal(t, id1, res[0].ID, "ties keep insertion order")

	require.NoError(t, svc.Delete("kb1", id1))
	assert.Error(t, svc.Delete("kb1", id1))
	assert.Error(t, svc.Delete("nope", id1))

	res, err = svc.Search("missing", "x", 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestInMemoryStore_ExplicitIDAndValidation(t *testing.T) {
	svc := NewInMemoryStore()

	id, err := svc.Store("kb", core.Document{ID: "custom", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "custom", id)

	_, err = svc.Store("", core.Document{Text: "x"})
	assert.Error(t, err)
}

func TestInMemoryStore_MetadataIsolation(t *testing.T) {
	svc := NewInMemoryStore()
	md := map[string]any{"page": 1}
	_, err := svc.Store("kb", core.Document{Text: "hello", Metadata: md})
	require.NoError(t, err)
	md["page"] = 2

	res, err := svc.Search("kb", "hello", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 1, res[0].Metadata["page"])

	res[0].Metadata["page"] = 3
	res, _ = svc.Search("kb", "hello", 1)
	assert.Equal(t, 1, res[0].Metadata["page"])
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	svc := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Store("kb", core.Document{Text: "doc"})
			_, _ = svc.Search("kb", "doc", 5)
		}()
	}
	wg.Wait()

	res, err := svc.Search("kb", "doc", 100)
	require.NoError(t, err)
	assert.Len(t, res, 20)
}
