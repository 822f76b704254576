package contract

import (
	"context"

	"github.com/Kripu77/prompt-map-sub001/internal/entity"
	"github.com/Kripu77/prompt-map-sub001/internal/repository/specification"
)

type AnonymousMindmapRepository interface {
	Create(ctx context.Context, record *entity.AnonymousMindmap) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AnonymousMindmap, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
