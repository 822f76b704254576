package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Thread struct {
	Id                uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId            uuid.UUID      `gorm:"type:uuid;not null;index"`
	Title             string         `gorm:"type:varchar(255);not null"`
	Content           string         `gorm:"type:text;not null"`
	Reasoning         *string        `gorm:"type:text"`
	ReasoningDuration *int           `gorm:"type:integer"`
	Options           datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time      `gorm:"autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime"`
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

func (Thread) TableName() string {
	return "threads"
}
