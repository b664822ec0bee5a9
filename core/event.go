package core

import (
	"encoding/json"
	"fmt"
)

// Status tags a StreamEvent.
type Status string

const (
	StatusSearching       Status = "searching"
	StatusGenerating      Status = "generating"
	StatusReasoning       Status = "reasoning"
	StatusLoading         Status = "loading"
	StatusFinished        Status = "finished"
	StatusTitleGenerating Status = "title_generating"
	StatusTitleGenerated  Status = "title_generated"
	StatusError           Status = "error"
)

// Retrieved item kinds.
const (
	ItemDocument  = "document"
	ItemGraphNode = "graph_node"
)

// RetrievedItem is a normalized, UI-ready summary of one retrieval hit.
// Documents fill Filename/Content, graph nodes fill Name/Label.
type RetrievedItem struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Filename string `json:"filename,omitempty"`
	Content  string `json:"content,omitempty"`
	Name     string `json:"name,omitempty"`
	Label    string `json:"label,omitempty"`
}

// References holds the raw retrieval backend output.
type References map[string]any

// RetrievalOutcome is the result of the retrieval phase. A failed retrieval is
// still an outcome: Query falls back to the original query, Refs is nil, Items
// is empty and Err records the cause.
type RetrievalOutcome struct {
	Query string
	Refs  References
	Items []RetrievedItem
	Err   error
}

// StreamEvent is one element of the orchestration stream. After emission it
// should be treated as immutable. Every event carries the thread id and the
// echoed metadata; the remaining fields depend on Status:
//   - generating: RetrievedDocs (possibly empty, present only after retrieval ran)
//   - reasoning: ReasoningContent (accumulated reasoning text)
//   - loading: Response (the delta's own content)
//   - finished: History, Refs
//   - title_generating / title_generated: Title
//   - error: Message
type StreamEvent struct {
	Status           Status          `json:"status"`
	Response         *string         `json:"response"`
	Meta             Metadata        `json:"meta"`
	ThreadID         string          `json:"thread_id"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	RetrievedDocs    []RetrievedItem `json:"retrieved_docs,omitempty"`
	History          []Message       `json:"history,omitempty"`
	Refs             References      `json:"refs,omitempty"`
	Title            string          `json:"title,omitempty"`
	Message          string          `json:"message,omitempty"`
}

// NewStreamEvent creates a bare event bound to a thread.
func NewStreamEvent(status Status, threadID string, meta Metadata) StreamEvent {
	if meta == nil {
		meta = Metadata{}
	}
	return StreamEvent{Status: status, ThreadID: threadID, Meta: meta}
}

// IsTerminal reports whether the event ends the answer part of a stream
// (finished or error). Title events may still follow finished.
func (e StreamEvent) IsTerminal() bool {
	return e.Status == StatusFinished || e.Status == StatusError
}

// Text returns the response text or "" when absent.
func (e StreamEvent) Text() string {
	if e.Response == nil {
		return ""
	}
	return *e.Response
}

// MarshalJSON keeps retrieved_docs as an explicit empty list on generating
// events after a retrieval phase, and history on finished events.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	type alias StreamEvent
	out := struct {
		alias
		RetrievedDocs *[]RetrievedItem `json:"retrieved_docs,omitempty"`
		History       *[]Message       `json:"history,omitempty"`
	}{alias: alias(e)}
	if e.RetrievedDocs != nil {
		out.RetrievedDocs = &e.RetrievedDocs
	}
	if e.Status == StatusFinished {
		h := e.History
		if h == nil {
			h = []Message{}
		}
		out.History = &h
	}
	return json.Marshal(out)
}

// Encode returns the JSON encoding of the event.
func (e StreamEvent) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode stream event: %w", err)
	}
	return b, nil
}

// EncodeSSE frames the event as a server-sent event: "data: {json}\n\n".
func (e StreamEvent) EncodeSSE() ([]byte, error) {
	b, err := e.Encode()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(b)+8)
	out = append(out, "data: "...)
	out = append(out, b...)
	return append(out, '\n', '\n'), nil
}
