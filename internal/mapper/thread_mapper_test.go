package mapper

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Kripu77/prompt-map-sub001/internal/entity"
	"github.com/Kripu77/prompt-map-sub001/internal/model"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

func TestThreadMapper_Options(t *testing.T) {
	m := NewThreadMapper()

	e := &entity.Thread{
		Id:      uuid.New(),
		UserId:  uuid.New(),
		Title:   "Rust",
		Content: "# Rust",
		Options: &mindmap.GenerationOptions{
			UserExpertise:     mindmap.ExpertiseAdvanced,
			UseChainOfThought: true,
		},
	}
	row := m.ToModel(e)
	assert.JSONEq(t, `{"userExpertise":"advanced","useChainOfThought":true}`, string(row.Options))

	back := m.ToEntity(row)
	require.NotNil(t, back.Options)
	assert.Equal(t, *e.Options, *back.Options)
}

func TestThreadMapper_NullableFields(t *testing.T) {
	m := NewThreadMapper()

	deleted := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	row := &model.Thread{
		Id:        uuid.New(),
		Title:     "Old",
		Options:   datatypes.JSON("not json"),
		DeletedAt: gorm.DeletedAt{Time: deleted, Valid: true},
	}
	e := m.ToEntity(row)
	assert.Nil(t, e.Options, "undecodable options are dropped")
	assert.Nil(t, e.UpdatedAt)
	assert.True(t, e.IsDeleted)
	require.NotNil(t, e.DeletedAt)
	assert.Equal(t, deleted, *e.DeletedAt)

	assert.Nil(t, m.ToModel(&entity.Thread{}).Options)
	assert.Nil(t, m.ToEntity(nil))
}
