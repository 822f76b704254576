package dto

import (
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

// TopicShiftRequest is a PromptPayload whose context is mandatory.
type TopicShiftRequest struct {
	Prompt  string                   `json:"prompt" validate:"required,max=2000"`
	Context *mindmap.FollowUpContext `json:"context" validate:"required"`
}

func (r TopicShiftRequest) Payload() mindmap.PromptPayload {
	return mindmap.PromptPayload{Prompt: r.Prompt, Context: r.Context}
}
