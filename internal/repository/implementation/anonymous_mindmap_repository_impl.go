package implementation

import (
	"context"

	"gorm.io/gorm"

	"github.com/Kripu77/prompt-map-sub001/internal/entity"
	"github.com/Kripu77/prompt-map-sub001/internal/mapper"
	"github.com/Kripu77/prompt-map-sub001/internal/model"
	"github.com/Kripu77/prompt-map-sub001/internal/repository/contract"
	"github.com/Kripu77/prompt-map-sub001/internal/repository/scope"
	"github.com/Kripu77/prompt-map-sub001/internal/repository/specification"
)

type AnonymousMindmapRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.AnonymousMindmapMapper
}

func NewAnonymousMindmapRepository(db *gorm.DB) contract.AnonymousMindmapRepository {
	return &AnonymousMindmapRepositoryImpl{
		db:     db,
		mapper: mapper.NewAnonymousMindmapMapper(),
	}
}

func (r *AnonymousMindmapRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *AnonymousMindmapRepositoryImpl) Create(ctx context.Context, record *entity.AnonymousMindmap) error {
	m := r.mapper.ToModel(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.ToEntity(m)
	return nil
}

func (r *AnonymousMindmapRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AnonymousMindmap, error) {
	var models []*model.AnonymousMindmap
	query := r.applySpecifications(r.db.WithContext(ctx), specs...).Scopes(scope.NewestFirst)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *AnonymousMindmapRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.AnonymousMindmap{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
