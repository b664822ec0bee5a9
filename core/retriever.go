package core

import "context"

// Retriever is the retrieval engine consumed by the orchestrator. It may
// rewrite the query and returns the raw backend references (possibly nil).
// Errors are recoverable: the orchestrator degrades to no retrieval.
type Retriever interface {
	Retrieve(ctx context.Context, query string, prior []Message, meta Metadata) (string, References, error)
}

// RetrieverFunc adapts a plain function to the Retriever interface.
type RetrieverFunc func(ctx context.Context, query string, prior []Message, meta Metadata) (string, References, error)

// Retrieve implements Retriever.
func (f RetrieverFunc) Retrieve(ctx context.Context, query string, prior []Message, meta Metadata) (string, References, error) {
	return f(ctx, query, prior, meta)
}
