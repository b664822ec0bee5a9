package core

import (
	"encoding/json"
	"strconv"
)

// Recognized metadata keys.
const (
	MetaUseWeb          = "use_web"
	MetaUseGraph        = "use_graph"
	MetaDBID            = "db_id"
	MetaHistoryRound    = "history_round"
	MetaSystemPrompt    = "system_prompt"
	MetaModelProvider   = "model_provider"
	MetaModelName       = "model_name"
	MetaServerModelName = "server_model_name"
)

// Metadata is the caller supplied request metadata. It is echoed on every
// stream event. Accessors are lenient about the JSON shapes clients send
// (bools as strings, numbers as float64 or strings).
type Metadata map[string]any

// Clone returns a shallow copy; a nil receiver yields an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// With returns a copy of m with key set to value.
func (m Metadata) With(key string, value any) Metadata {
	out := m.Clone()
	out[key] = value
	return out
}

// UseWeb reports whether web search was requested.
func (m Metadata) UseWeb() bool { return m.Bool(MetaUseWeb) }

// UseGraph reports whether knowledge graph lookup was requested.
func (m Metadata) UseGraph() bool { return m.Bool(MetaUseGraph) }

// DBID returns the target knowledge base id, if any.
func (m Metadata) DBID() string { return m.String(MetaDBID) }

// SystemPrompt returns the system prompt carried in the metadata.
func (m Metadata) SystemPrompt() string { return m.String(MetaSystemPrompt) }

// ModelProvider returns the requested model provider.
func (m Metadata) ModelProvider() string { return m.String(MetaModelProvider) }

// ModelName returns the requested model name.
func (m Metadata) ModelName() string { return m.String(MetaModelName) }

// HistoryRound returns the round limit for the history window; 0 means unbounded.
func (m Metadata) HistoryRound() int {
	n, _ := m.Int(MetaHistoryRound)
	if n < 0 {
		return 0
	}
	return n
}

// NeedsRetrieval is true iff web search, graph use or a target database is requested.
func (m Metadata) NeedsRetrieval() bool {
	return m.UseWeb() || m.UseGraph() || m.DBID() != ""
}

// Bool interprets key as a boolean flag.
func (m Metadata) Bool(key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		return err == nil && b
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

// String returns key as a string; non-string scalars are formatted.
func (m Metadata) String(key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// Int returns key as an integer and whether it was present and numeric.
func (m Metadata) Int(key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}
