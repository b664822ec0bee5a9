package core

// History is the per-turn history window: an ordered list of turns optionally
// prefixed by a system prompt. View computes the bounded model input for a new
// query without touching the stored turns; AddUser/AddAssistant record the turn
// afterwards. A History is owned by a single invocation and is not safe for
// concurrent use.
type History struct {
	systemPrompt string
	messages     []Message
}

// NewHistory seeds a window with prior turns. System messages inside msgs are
// dropped; the system prompt is kept separately and prefixed by View.
func NewHistory(msgs []Message, systemPrompt string) *History {
	h := &History{systemPrompt: systemPrompt, messages: make([]Message, 0, len(msgs)+2)}
	for _, m := range msgs {
		if m.Role == RoleSystem {
			continue
		}
		h.messages = append(h.messages, m)
	}
	return h
}

// View returns system prompt (if any) + the last maxRounds user/assistant pairs
// (everything when maxRounds <= 0) + a final user turn equal to query.
func (h *History) View(query string, maxRounds int) []Message {
	tail := h.messages
	if maxRounds > 0 && len(tail) > 2*maxRounds {
		tail = tail[len(tail)-2*maxRounds:]
	}

	view := make([]Message, 0, len(tail)+2)
	if h.systemPrompt != "" {
		view = append(view, NewSystemMessage(h.systemPrompt))
	}
	view = append(view, tail...)
	return append(view, NewUserMessage(query))
}

// AddUser records a user turn.
func (h *History) AddUser(text string) { h.messages = append(h.messages, NewUserMessage(text)) }

// AddAssistant records an assistant turn.
func (h *History) AddAssistant(text string) {
	h.messages = append(h.messages, NewAssistantMessage(text))
}

// Messages returns a copy of the recorded turns (system prompt excluded).
func (h *History) Messages() []Message { return CloneMessages(h.messages) }

// Len returns the number of recorded turns.
func (h *History) Len() int { return len(h.messages) }
