package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

type CreateThreadRequest struct {
	Title             string                     `json:"title" validate:"required,max=255"`
	Content           string                     `json:"content" validate:"required"`
	Reasoning         *string                    `json:"reasoning,omitempty"`
	ReasoningDuration *int                       `json:"reasoningDuration,omitempty" validate:"omitempty,min=0"`
	Options           *mindmap.GenerationOptions `json:"options,omitempty" validate:"omitempty"`
}

// UpdateThreadRequest is a partial update; nil fields are left unchanged.
type UpdateThreadRequest struct {
	Id                uuid.UUID `json:"-"`
	Title             *string   `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Content           *string   `json:"content,omitempty" validate:"omitempty,min=1"`
	Reasoning         *string   `json:"reasoning,omitempty"`
	ReasoningDuration *int      `json:"reasoningDuration,omitempty" validate:"omitempty,min=0"`
}

func (r UpdateThreadRequest) Empty() bool {
	return r.Title == nil && r.Content == nil && r.Reasoning == nil && r.ReasoningDuration == nil
}

type ListThreadsRequest struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

type ThreadResponse struct {
	Id                uuid.UUID                  `json:"id"`
	Title             string                     `json:"title"`
	Content           string                     `json:"content"`
	Reasoning         *string                    `json:"reasoning,omitempty"`
	ReasoningDuration *int                       `json:"reasoningDuration,omitempty"`
	Options           *mindmap.GenerationOptions `json:"options,omitempty"`
	CreatedAt         time.Time                  `json:"createdAt"`
	UpdatedAt         *time.Time                 `json:"updatedAt"`
}

type ThreadListResponse struct {
	Items  []*ThreadResponse `json:"items"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}
