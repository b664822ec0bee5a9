// Package memory contains concrete KnowledgeStore implementations. The store
// interface and SearchResult type reside in the core package; depend on
// core.KnowledgeStore in your code and select an implementation (like the
// in‑memory store below) at wiring time.
//
// Vector databases and graph engines plug in behind the same interface
// without introducing dependency cycles.
package memory
