package core

// Role identifies the author of a conversational message.
type Role string

const (
	// RoleSystem marks the optional leading system prompt.
	RoleSystem Role = "system"
	// RoleUser marks a user turn.
	RoleUser Role = "user"
	// RoleAssistant marks a model generated turn.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is a single conversational turn. Messages are immutable once appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user-authored message.
func NewUserMessage(text string) Message { return Message{Role: RoleUser, Content: text} }

// NewAssistantMessage creates an assistant-authored message.
func NewAssistantMessage(text string) Message { return Message{Role: RoleAssistant, Content: text} }

// NewSystemMessage creates a system prompt message.
func NewSystemMessage(text string) Message { return Message{Role: RoleSystem, Content: text} }

// CloneMessages returns a copy of msgs; nil stays nil.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
