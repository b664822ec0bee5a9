package retrieval

import (
	"context"
	"fmt"

	"github.com/hupe1980/chatmesh/core"
)

// Run invokes r and folds the result into an outcome. A failing retriever
// (error or panic) degrades to the original query, nil references and an
// empty item list, with Err recording the cause.
func Run(ctx context.Context, r core.Retriever, query string, prior []core.Message, meta core.Metadata) (out core.RetrievalOutcome) {
	out = core.RetrievalOutcome{Query: query, Items: []core.RetrievedItem{}}
	if r == nil {
		return out
	}

	defer func() {
		if p := recover(); p != nil {
			out = core.RetrievalOutcome{Query: query, Items: []core.RetrievedItem{}, Err: fmt.Errorf("retriever panic: %v", p)}
		}
	}()

	modified, refs, err := r.Retrieve(ctx, query, core.CloneMessages(prior), meta.Clone())
	if err != nil {
		out.Err = err
		return out
	}
	if modified != "" {
		out.Query = modified
	}
	out.Refs = refs
	out.Items = Normalize(refs)
	return out
}
