package entity

import (
	"time"

	"github.com/google/uuid"
)

type AnonymousMindmap struct {
	Id        uuid.UUID
	Prompt    string
	Title     string
	Content   string
	SessionId string
	UserAgent string
	Referrer  string
	CreatedAt time.Time
}
