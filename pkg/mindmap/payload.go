package mindmap

import (
	"sync"
)

// PromptHistoryItem is one submitted prompt. Items are never mutated.
type PromptHistoryItem struct {
	Prompt     string `json:"prompt"`
	Timestamp  int64  `json:"timestamp"` // ms since epoch
	IsFollowUp bool   `json:"isFollowUp"`
}

// FollowUpContext carries the existing map to the generation and topic-shift endpoints.
type FollowUpContext struct {
	OriginalPrompt  string   `json:"originalPrompt"`
	ExistingMindmap string   `json:"existingMindmap"`
	PreviousPrompts []string `json:"previousPrompts"`
	IsFollowUp      bool     `json:"isFollowUp"`
	CheckTopicShift bool     `json:"checkTopicShift"`
}

// PromptPayload is the request body shared by generation and topic-shift calls.
// Context is set only for follow-ups.
type PromptPayload struct {
	Prompt  string           `json:"prompt"`
	Context *FollowUpContext `json:"context,omitempty"`
}

// BuildPayload constructs the request payload for a prompt. It is pure.
//
// Non-follow-ups carry no context, which tells the server to start a new map.
// For follow-ups the original prompt is the first non-follow-up history entry,
// falling back to rootPrompt while history is still empty.
func BuildPayload(
	newPrompt string,
	isFollowUp bool,
	history []PromptHistoryItem,
	rootPrompt string,
	currentContent string,
	checkTopicShift bool,
) PromptPayload {
	if !isFollowUp {
		return PromptPayload{Prompt: newPrompt}
	}

	originalPrompt := rootPrompt
	for _, item := range history {
		if !item.IsFollowUp {
			originalPrompt = item.Prompt
			break
		}
	}

	previous := make([]string, 0, len(history))
	for _, item := range history {
		previous = append(previous, item.Prompt)
	}

	return PromptPayload{
		Prompt: newPrompt,
		Context: &FollowUpContext{
			OriginalPrompt:  originalPrompt,
			ExistingMindmap: currentContent,
			PreviousPrompts: previous,
			IsFollowUp:      true,
			CheckTopicShift: checkTopicShift,
		},
	}
}

// History is the append-only prompt log of one mind map session.
type History struct {
	mu    sync.RWMutex
	items []PromptHistoryItem
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Append(item PromptHistoryItem) {
	h.mu.Lock()
	h.items = append(h.items, item)
	h.mu.Unlock()
}

// Items returns a copy in insertion order.
func (h *History) Items() []PromptHistoryItem {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]PromptHistoryItem, len(h.items))
	copy(out, h.items)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

func (h *History) Clear() {
	h.mu.Lock()
	h.items = nil
	h.mu.Unlock()
}

// RootPrompt returns the first non-follow-up prompt of the session.
func (h *History) RootPrompt() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, item := range h.items {
		if !item.IsFollowUp {
			return item.Prompt, true
		}
	}
	return "", false
}
