package retrieval

import (
	"context"
	"fmt"

	"github.com/hupe1980/chatmesh/core"
)

// KnowledgeOptions configure a KnowledgeRetriever.
type KnowledgeOptions struct {
	// Limit caps the number of documents returned per query.
	Limit int
	// MinScore drops hits scoring below it.
	MinScore float64
}

// KnowledgeRetriever searches the knowledge base named by the db_id metadata
// key and reports hits in the knowledge_base reference shape. The query is
// returned unchanged.
type KnowledgeRetriever struct {
	store core.KnowledgeStore
	opts  KnowledgeOptions
}

var _ core.Retriever = (*KnowledgeRetriever)(nil)

// NewKnowledgeRetriever creates a retriever over store.
func NewKnowledgeRetriever(store core.KnowledgeStore, optFns ...func(o *KnowledgeOptions)) *KnowledgeRetriever {
	opts := KnowledgeOptions{Limit: 5}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &KnowledgeRetriever{store: store, opts: opts}
}

// Retrieve implements core.Retriever. Without a db_id it returns nil references.
func (k *KnowledgeRetriever) Retrieve(ctx context.Context, query string, _ []core.Message, meta core.Metadata) (string, core.References, error) {
	if err := ctx.Err(); err != nil {
		return query, nil, err
	}
	dbID := meta.DBID()
	if dbID == "" {
		return query, nil, nil
	}

	hits, err := k.store.Search(dbID, query, k.opts.Limit)
	if err != nil {
		return query, nil, fmt.Errorf("search knowledge base %s: %w", dbID, err)
	}

	results := make([]any, 0, len(hits))
	for _, h := range hits {
		if h.Score < k.opts.MinScore {
			continue
		}
		md := map[string]any{}
		if h.Filename != "" {
			md["filename"] = h.Filename
		}
		results = append(results, map[string]any{
			"id":    h.ID,
			"score": h.Score,
			"entity": map[string]any{
				"text":     h.Content,
				"metadata": md,
			},
		})
	}

	refs := core.References{
		"knowledge_base": map[string]any{
			"db_id":   dbID,
			"results": results,
		},
	}
	return query, refs, nil
}
