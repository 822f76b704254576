package contract

import (
	"context"

	"github.com/google/uuid"

	"github.com/Kripu77/prompt-map-sub001/internal/entity"
	"github.com/Kripu77/prompt-map-sub001/internal/repository/specification"
)

type ThreadRepository interface {
	Create(ctx context.Context, thread *entity.Thread) error
	Update(ctx context.Context, thread *entity.Thread) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Thread, error)
	// FindAll returns newest first unless a spec orders otherwise.
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Thread, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
