package model

import (
	"time"

	"github.com/google/uuid"
)

type AnonymousMindmap struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Prompt    string    `gorm:"type:text;not null"`
	Title     string    `gorm:"type:varchar(255)"`
	Content   string    `gorm:"type:text"`
	SessionId string    `gorm:"type:varchar(255);index"`
	UserAgent string    `gorm:"type:text"`
	Referrer  string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (AnonymousMindmap) TableName() string {
	return "anonymous_mindmaps"
}
