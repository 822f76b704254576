package mapper

import (
	"github.com/Kripu77/prompt-map-sub001/internal/entity"
	"github.com/Kripu77/prompt-map-sub001/internal/model"
)

type AnonymousMindmapMapper struct{}

func NewAnonymousMindmapMapper() *AnonymousMindmapMapper {
	return &AnonymousMindmapMapper{}
}

func (m *AnonymousMindmapMapper) ToEntity(a *model.AnonymousMindmap) *entity.AnonymousMindmap {
	if a == nil {
		return nil
	}
	return &entity.AnonymousMindmap{
		Id:        a.Id,
		Prompt:    a.Prompt,
		Title:     a.Title,
		Content:   a.Content,
		SessionId: a.SessionId,
		UserAgent: a.UserAgent,
		Referrer:  a.Referrer,
		CreatedAt: a.CreatedAt,
	}
}

func (m *AnonymousMindmapMapper) ToModel(a *entity.AnonymousMindmap) *model.AnonymousMindmap {
	if a == nil {
		return nil
	}
	return &model.AnonymousMindmap{
		Id:        a.Id,
		Prompt:    a.Prompt,
		Title:     a.Title,
		Content:   a.Content,
		SessionId: a.SessionId,
		UserAgent: a.UserAgent,
		Referrer:  a.Referrer,
		CreatedAt: a.CreatedAt,
	}
}

func (m *AnonymousMindmapMapper) ToEntities(records []*model.AnonymousMindmap) []*entity.AnonymousMindmap {
	entities := make([]*entity.AnonymousMindmap, len(records))
	for i, r := range records {
		entities[i] = m.ToEntity(r)
	}
	return entities
}
