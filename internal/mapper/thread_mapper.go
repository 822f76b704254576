package mapper

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Kripu77/prompt-map-sub001/internal/entity"
	"github.com/Kripu77/prompt-map-sub001/internal/model"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

type ThreadMapper struct{}

func NewThreadMapper() *ThreadMapper {
	return &ThreadMapper{}
}

func (m *ThreadMapper) ToEntity(t *model.Thread) *entity.Thread {
	if t == nil {
		return nil
	}

	var deletedAt *time.Time
	if t.DeletedAt.Valid {
		d := t.DeletedAt.Time
		deletedAt = &d
	}

	var updatedAt *time.Time
	if !t.UpdatedAt.IsZero() {
		u := t.UpdatedAt
		updatedAt = &u
	}

	// Options written by older clients may not decode; the thread is still usable.
	var options *mindmap.GenerationOptions
	if len(t.Options) > 0 && string(t.Options) != "null" {
		var o mindmap.GenerationOptions
		if err := json.Unmarshal(t.Options, &o); err == nil {
			options = &o
		}
	}

	return &entity.Thread{
		Id:                t.Id,
		UserId:            t.UserId,
		Title:             t.Title,
		Content:           t.Content,
		Reasoning:         t.Reasoning,
		ReasoningDuration: t.ReasoningDuration,
		Options:           options,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         updatedAt,
		DeletedAt:         deletedAt,
		IsDeleted:         t.DeletedAt.Valid,
	}
}

func (m *ThreadMapper) ToModel(t *entity.Thread) *model.Thread {
	if t == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if t.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *t.DeletedAt, Valid: true}
	} else if t.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if t.UpdatedAt != nil {
		updatedAt = *t.UpdatedAt
	}

	var options datatypes.JSON
	if t.Options != nil {
		if raw, err := json.Marshal(t.Options); err == nil {
			options = datatypes.JSON(raw)
		}
	}

	return &model.Thread{
		Id:                t.Id,
		UserId:            t.UserId,
		Title:             t.Title,
		Content:           t.Content,
		Reasoning:         t.Reasoning,
		ReasoningDuration: t.ReasoningDuration,
		Options:           options,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         updatedAt,
		DeletedAt:         deletedAt,
	}
}

func (m *ThreadMapper) ToEntities(threads []*model.Thread) []*entity.Thread {
	entities := make([]*entity.Thread, len(threads))
	for i, t := range threads {
		entities[i] = m.ToEntity(t)
	}
	return entities
}
