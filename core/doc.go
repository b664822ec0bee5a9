// Package core provides the foundational domain types and interfaces used by
// chatmesh. It defines the core abstractions for:
//
//   - Messages and conversation sessions (ordered turns, title, expiry)
//   - The history window computing a bounded model view for a new turn
//   - Stream events (the tagged union emitted to clients) and their wire encoding
//   - Request metadata with typed accessors for the recognized keys
//   - The concurrency throttle bounding simultaneous generations
//   - Pluggable contracts for session stores, retrievers and knowledge stores
//
// The package intentionally keeps implementation concerns (persistence,
// orchestration, model vendors) out of scope, exposing small interfaces to
// enable custom backends.
package core
