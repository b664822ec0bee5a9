// Package retrieval adapts retrieval backends to the orchestrator.
//
// Normalize turns raw backend references into the uniform RetrievedItem list
// the stream reports, Run wraps a core.Retriever call into a fail-soft
// core.RetrievalOutcome, and KnowledgeRetriever is a small default backend
// over a core.KnowledgeStore.
package retrieval
