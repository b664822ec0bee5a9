package core

// KnowledgeStore holds indexed documents grouped by knowledge base id and
// answers keyword searches over them. Implementations can back search with
// embeddings, keywords or any heuristic.
type KnowledgeStore interface {
	Store(dbID string, doc Document) (string, error)
	Search(dbID string, query string, limit int) ([]SearchResult, error)
	Delete(dbID string, docID string) error
}

// Document is a unit of indexed text with its originating file name.
type Document struct {
	ID       string
	Filename string
	Text     string
	Metadata map[string]any
}
