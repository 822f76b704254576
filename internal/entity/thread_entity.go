package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

// Thread is a saved mind map owned by a signed-in user.
type Thread struct {
	Id                uuid.UUID
	UserId            uuid.UUID
	Title             string
	Content           string
	Reasoning         *string
	ReasoningDuration *int
	Options           *mindmap.GenerationOptions
	CreatedAt         time.Time
	UpdatedAt         *time.Time
	DeletedAt         *time.Time
	IsDeleted         bool
}
