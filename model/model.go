package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/chatmesh/core"
)

// Delta is one incremental unit of generation output. When IsFull is set the
// Content replaces everything received so far instead of extending it.
// ReasoningContent always extends the reasoning text.
type Delta struct {
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
	IsFull           bool   `json:"is_full,omitempty"`
}

// Request captures the normalized model input.
type Request struct {
	Messages []core.Message `json:"messages"`
	Stream   bool           `json:"stream,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface required by the engine to drive generation.
// Generate closes the delta channel when done; a terminal failure is sent on
// the error channel (buffered, at most one value). Non-streaming requests
// produce a single delta with IsFull set.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Delta, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Complete runs a non-streaming request and returns the accumulated content.
func Complete(ctx context.Context, m Model, messages []core.Message) (string, error) {
	deltas, errs := m.Generate(ctx, Request{Messages: messages})

	var sb strings.Builder
	for d := range deltas {
		if d.IsFull {
			sb.Reset()
		}
		sb.WriteString(d.Content)
	}
	if err := <-errs; err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ErrUnknownModel is returned by Registry.Select for unregistered providers.
var ErrUnknownModel = errors.New("unknown model")

// Factory builds a Model for a model name of one provider.
type Factory func(name string) (Model, error)

type provider struct {
	factory Factory
	names   []string
}

// Registry maps providers to model factories and keeps a default model for
// requests that do not name one. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*provider
	cache     map[string]Model
	fallback  Model
}

// NewRegistry creates a registry using def for unqualified requests.
func NewRegistry(def Model) *Registry {
	return &Registry{providers: map[string]*provider{}, cache: map[string]Model{}, fallback: def}
}

// Register adds a provider with its factory and advertised model names.
func (r *Registry) Register(name string, factory Factory, models ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &provider{factory: factory, names: append([]string(nil), models...)}
}

// SetModels replaces the advertised model names of a registered provider.
func (r *Registry) SetModels(providerName string, models []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q", ErrUnknownModel, providerName)
	}
	p.names = append([]string(nil), models...)
	return append([]string(nil), p.names...), nil
}

// Providers lists the registered provider names in sorted order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the model used when a request names none.
func (r *Registry) Default() Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Models lists the advertised model names of a provider.
func (r *Registry) Models(providerName string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q", ErrUnknownModel, providerName)
	}
	return append([]string(nil), p.names...), nil
}

// Select resolves a model for provider/name. Empty provider yields the
// default model. Built models are cached per provider/name pair.
func (r *Registry) Select(providerName, modelName string) (Model, error) {
	if providerName == "" {
		if def := r.Default(); def != nil {
			return def, nil
		}
		return nil, fmt.Errorf("%w: no default model configured", ErrUnknownModel)
	}

	key := providerName + "/" + modelName
	r.mu.RLock()
	m, ok := r.cache[key]
	p, known := r.providers[providerName]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}
	if !known {
		return nil, fmt.Errorf("%w: provider %q", ErrUnknownModel, providerName)
	}

	m, err := p.factory(modelName)
	if err != nil {
		return nil, fmt.Errorf("build model %s: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[key]; ok {
		return cached, nil
	}
	r.cache[key] = m
	return m, nil
}
