package model

import (
	"context"
	"fmt"
	"sync"
)

// MockModel is a lightweight in‑memory Model useful for tests & examples.
//
// Streaming requests emit the scripted deltas in order (or the canned reply
// for the last user message split into characters when no script is set).
// FailAfter makes the stream fail after that many deltas. Non-streaming
// requests return the canned completion (or, when none was set, the canned
// reply) as one full delta.
type MockModel struct {
	info Info

	mu          sync.Mutex
	script      []Delta
	failAfter   int
	failErr     error
	responses   map[string]string
	completion  string
	completeSet bool
	completeErr error
	requests    []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		failAfter: -1,
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetScript sets the deltas emitted by streaming requests.
func (m *MockModel) SetScript(deltas ...Delta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append([]Delta(nil), deltas...)
}

// FailAfter makes streaming requests fail with err after n deltas.
func (m *MockModel) FailAfter(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.failErr = err
}

// SetCompletion sets the reply (or failure) of non-streaming requests.
func (m *MockModel) SetCompletion(text string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completion = text
	m.completeSet = true
	m.completeErr = err
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Delta, <-chan error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	script := m.streamScript(req)
	failAfter, failErr := m.failAfter, m.failErr
	completion, completeErr := m.completion, m.completeErr
	if !m.completeSet {
		completion = m.cannedReply(req)
	}
	m.mu.Unlock()

	respCh := make(chan Delta, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		if !req.Stream {
			if completeErr != nil {
				errCh <- completeErr
				return
			}
			respCh <- Delta{Content: completion, IsFull: true}
			return
		}
		for i, d := range script {
			if failAfter >= 0 && i == failAfter {
				errCh <- failErr
				return
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case respCh <- d:
			}
		}
		if failAfter >= 0 && failAfter >= len(script) {
			errCh <- failErr
		}
	}()
	return respCh, errCh
}

// streamScript returns the configured script or a per-character rendition of
// the canned reply; caller holds the lock.
func (m *MockModel) streamScript(req Request) []Delta {
	if len(m.script) > 0 {
		return append([]Delta(nil), m.script...)
	}
	full := m.cannedReply(req)
	deltas := make([]Delta, 0, len(full))
	for _, r := range full {
		deltas = append(deltas, Delta{Content: string(r)})
	}
	return deltas
}

// cannedReply looks up the registered response for the last message;
// caller holds the lock.
func (m *MockModel) cannedReply(req Request) string {
	var input string
	if n := len(req.Messages); n > 0 {
		input = req.Messages[n-1].Content
	}
	if reply, ok := m.responses[input]; ok {
		return reply
	}
	return fmt.Sprintf("Mock response to: %s", input)
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
