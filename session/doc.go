// Package session houses concrete implementations of the core.SessionStore
// together with the fail-soft Manager the engine talks to.
//
// The interface itself (and the Session struct) live in the core package to
// centralize domain contracts. The in-memory store lives here; durable
// backends (Redis, SQLite) are sub-packages so callers only pull in the
// driver they wire.
//
// The Manager is the only type the orchestration layer uses: every store
// failure is caught, logged and neutralized, so a conversational turn
// completes identically whether or not the store is healthy.
package session
