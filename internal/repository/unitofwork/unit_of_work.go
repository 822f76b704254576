package unitofwork

import (
	"context"

	"github.com/Kripu77/prompt-map-sub001/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ThreadRepository() contract.ThreadRepository
	AnonymousMindmapRepository() contract.AnonymousMindmapRepository
}
