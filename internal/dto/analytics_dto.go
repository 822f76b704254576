package dto

import "time"

type AnonymousMindmapRequest struct {
	Prompt    string `json:"prompt" validate:"required,max=2000"`
	Title     string `json:"title" validate:"max=255"`
	Content   string `json:"content"`
	SessionId string `json:"sessionId" validate:"max=255"`
	UserAgent string `json:"userAgent,omitempty" validate:"max=1024"`
	Referrer  string `json:"referrer,omitempty" validate:"max=2048"`
}

// AnonymousMindmapMessage is the queued form of an anonymous record.
type AnonymousMindmapMessage struct {
	Prompt     string    `json:"prompt"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	SessionId  string    `json:"sessionId"`
	UserAgent  string    `json:"userAgent"`
	Referrer   string    `json:"referrer"`
	ReceivedAt time.Time `json:"receivedAt"`
}
