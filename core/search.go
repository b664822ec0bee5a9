package core

// SearchResult represents a retrieved document chunk with a relevance score and arbitrary metadata.
type SearchResult struct {
	ID       string
	Filename string
	Content  string
	Score    float64
	Metadata map[string]any
}
