package testutil

import "github.com/hupe1980/chatmesh/model"

// DeltaScript builds model delta sequences for scripted mock models.
// Example:
//
//	deltas := NewDeltaScript().Reasoning("think").Content("Hel").Content("lo").Build()
type DeltaScript struct {
	deltas []model.Delta
}

// NewDeltaScript starts an empty script.
func NewDeltaScript() *DeltaScript { return &DeltaScript{} }

// Content appends an incremental answer fragment (chainable).
func (s *DeltaScript) Content(text string) *DeltaScript {
	s.deltas = append(s.deltas, model.Delta{Content: text})
	return s
}

// Full appends a full-replacement answer (chainable).
func (s *DeltaScript) Full(text string) *DeltaScript {
	s.deltas = append(s.deltas, model.Delta{Content: text, IsFull: true})
	return s
}

// Reasoning appends a reasoning-only delta (chainable).
func (s *DeltaScript) Reasoning(text string) *DeltaScript {
	s.deltas = append(s.deltas, model.Delta{ReasoningContent: text})
	return s
}

// Both appends a delta carrying reasoning and answer text (chainable).
func (s *DeltaScript) Both(reasoning, content string) *DeltaScript {
	s.deltas = append(s.deltas, model.Delta{ReasoningContent: reasoning, Content: content})
	return s
}

// Build returns a copy of the scripted deltas.
func (s *DeltaScript) Build() []model.Delta {
	return append([]model.Delta(nil), s.deltas...)
}
