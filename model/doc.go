// Package model defines the provider‑agnostic generation abstractions used by
// the chatmesh engine.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Normalize vendor stream chunks into a fixed Delta shape (content,
//     reasoning content, full-replace flag)
//   - Select a model per request from provider/name metadata (Registry)
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so the engine remains decoupled from vendor SDKs.
package model
