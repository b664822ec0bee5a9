package memory

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/chatmesh/core"
)

// storedDoc is the internal representation persisted by InMemoryStore.
type storedDoc struct {
	seq int
	doc core.Document
}

// InMemoryStore is a naive process‑local KnowledgeStore grouping documents
// by knowledge base id.
//
// Concurrency: protected by RWMutex.
// Search: linear scan scoring each document by the fraction of query terms
// it contains (case insensitive). Ties keep insertion order. Suitable only
// for tests / demos; swap for a vector DB or semantic index in production.
type InMemoryStore struct {
	mu      sync.RWMutex
	seq     int
	storage map[string]map[string]storedDoc // dbID -> docID -> document
}

var _ core.KnowledgeStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new in-memory knowledge store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{storage: make(map[string]map[string]storedDoc)}
}

// Store adds a document to the knowledge base, generating an id when the
// document carries none. The returned id can be used with Delete.
func (m *InMemoryStore) Store(dbID string, doc core.Document) (string, error) {
	if dbID == "" {
		return "", fmt.Errorf("knowledge base id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.storage[dbID]; !exists {
		m.storage[dbID] = make(map[string]storedDoc)
	}
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc_%d", m.seq)
	}
	doc.Metadata = maps.Clone(doc.Metadata)
	m.storage[dbID][doc.ID] = storedDoc{seq: m.seq, doc: doc}
	m.seq++
	return doc.ID, nil
}

// Search returns up to limit documents matching query, best first. An empty
// query matches every document with score 1.0.
func (m *InMemoryStore) Search(dbID string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.storage[dbID]
	if !exists || limit <= 0 {
		return []core.SearchResult{}, nil
	}

	terms := strings.Fields(strings.ToLower(query))

	type hit struct {
		seq int
		res core.SearchResult
	}
	hits := make([]hit, 0, len(docs))
	for _, stored := range docs {
		score := match(strings.ToLower(stored.doc.Text), terms)
		if score == 0 {
			continue
		}
		hits = append(hits, hit{seq: stored.seq, res: core.SearchResult{
			ID:       stored.doc.ID,
			Filename: stored.doc.Filename,
			Content:  stored.doc.Text,
			Score:    score,
			Metadata: maps.Clone(stored.doc.Metadata),
		}})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].res.Score != hits[j].res.Score {
			return hits[i].res.Score > hits[j].res.Score
		}
		return hits[i].seq < hits[j].seq
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	results := make([]core.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = h.res
	}
	return results, nil
}

// Delete removes a stored document by id.
func (m *InMemoryStore) Delete(dbID string, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, exists := m.storage[dbID]
	if !exists {
		return fmt.Errorf("knowledge base %q not found", dbID)
	}
	if _, exists := docs[docID]; !exists {
		return fmt.Errorf("document %q not found", docID)
	}
	delete(docs, docID)
	return nil
}

func match(text string, terms []string) float64 {
	if len(terms) == 0 {
		return 1.0
	}
	found := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}
