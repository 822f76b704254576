package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Kripu77/prompt-map-sub001/internal/dto"
	"github.com/Kripu77/prompt-map-sub001/internal/entity"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/metrics"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/serverutils"
	"github.com/Kripu77/prompt-map-sub001/internal/repository/specification"
	"github.com/Kripu77/prompt-map-sub001/internal/repository/unitofwork"
	"github.com/Kripu77/prompt-map-sub001/pkg/events"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

const (
	defaultThreadPageSize = 20
	threadTitleMaxLength  = 255
)

type IThreadService interface {
	GetAll(ctx context.Context, userId uuid.UUID, req *dto.ListThreadsRequest) (*dto.ThreadListResponse, error)
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateThreadRequest) (*dto.ThreadResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ThreadResponse, error)
	Update(ctx context.Context, userId uuid.UUID, req *dto.UpdateThreadRequest) (*dto.ThreadResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error

	// CreateThread saves a finished generation for a signed-in workspace session.
	CreateThread(ctx context.Context, userID uuid.UUID, draft mindmap.ThreadDraft) error
}

type threadService struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     logger.ILogger
	now        func() time.Time
}

var _ mindmap.ThreadPersister = (*threadService)(nil)

func NewThreadService(
	uowFactory unitofwork.RepositoryFactory,
	publisher events.Publisher,
	m *metrics.Metrics,
	log logger.ILogger,
) IThreadService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &threadService{
		uowFactory: uowFactory,
		publisher:  publisher,
		metrics:    m,
		logger:     log,
		now:        time.Now,
	}
}

func (c *threadService) GetAll(ctx context.Context, userId uuid.UUID, req *dto.ListThreadsRequest) (*dto.ThreadListResponse, error) {
	limit, offset := defaultThreadPageSize, 0
	if req != nil {
		if req.Limit > 0 {
			limit = req.Limit
		}
		offset = req.Offset
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	owned := specification.OwnedBy{UserID: userId}

	total, err := uow.ThreadRepository().Count(ctx, owned)
	if err != nil {
		return nil, serverutils.NewPersistenceError("Failed to count threads", err)
	}
	threads, err := uow.ThreadRepository().FindAll(ctx, owned, specification.Pagination{Limit: limit, Offset: offset})
	if err != nil {
		return nil, serverutils.NewPersistenceError("Failed to list threads", err)
	}

	items := make([]*dto.ThreadResponse, 0, len(threads))
	for _, t := range threads {
		items = append(items, toThreadResponse(t))
	}
	return &dto.ThreadListResponse{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

func (c *threadService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateThreadRequest) (*dto.ThreadResponse, error) {
	thread := &entity.Thread{
		Id:                uuid.New(),
		UserId:            userId,
		Title:             req.Title,
		Content:           req.Content,
		Reasoning:         nonEmpty(req.Reasoning),
		ReasoningDuration: req.ReasoningDuration,
		Options:           req.Options,
		CreatedAt:         c.now(),
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ThreadRepository().Create(ctx, thread); err != nil {
		return nil, serverutils.NewPersistenceError("Failed to create thread", err)
	}

	if c.metrics != nil {
		c.metrics.ThreadsCreatedTotal.Inc()
	}
	c.publish(ctx, events.ThreadCreated, thread)
	return toThreadResponse(thread), nil
}

func (c *threadService) CreateThread(ctx context.Context, userID uuid.UUID, draft mindmap.ThreadDraft) error {
	title := draft.Title
	if r := []rune(title); len(r) > threadTitleMaxLength {
		title = string(r[:threadTitleMaxLength])
	}

	req := &dto.CreateThreadRequest{
		Title:   title,
		Content: draft.Content,
		Options: draft.Options,
	}
	if draft.Reasoning != "" {
		reasoning, duration := draft.Reasoning, draft.ReasoningDuration
		req.Reasoning = &reasoning
		req.ReasoningDuration = &duration
	}

	_, err := c.Create(ctx, userID, req)
	return err
}

func (c *threadService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ThreadResponse, error) {
	thread, err := c.findOwned(ctx, c.uowFactory.NewUnitOfWork(ctx), userId, id)
	if err != nil {
		return nil, err
	}
	return toThreadResponse(thread), nil
}

func (c *threadService) Update(ctx context.Context, userId uuid.UUID, req *dto.UpdateThreadRequest) (*dto.ThreadResponse, error) {
	if req.Empty() {
		return nil, serverutils.NewValidationError("No fields to update", nil)
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	thread, err := c.findOwned(ctx, uow, userId, req.Id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		thread.Title = *req.Title
	}
	if req.Content != nil {
		thread.Content = *req.Content
	}
	if req.Reasoning != nil {
		thread.Reasoning = nonEmpty(req.Reasoning)
	}
	if req.ReasoningDuration != nil {
		d := *req.ReasoningDuration
		thread.ReasoningDuration = &d
	}
	now := c.now()
	thread.UpdatedAt = &now

	if err := uow.ThreadRepository().Update(ctx, thread); err != nil {
		return nil, serverutils.NewPersistenceError("Failed to update thread", err)
	}

	c.publish(ctx, events.ThreadUpdated, thread)
	return toThreadResponse(thread), nil
}

func (c *threadService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	thread, err := c.findOwned(ctx, uow, userId, id)
	if err != nil {
		return err
	}

	if err := uow.ThreadRepository().Delete(ctx, thread.Id); err != nil {
		return serverutils.NewPersistenceError("Failed to delete thread", err)
	}

	c.publish(ctx, events.ThreadDeleted, thread)
	return nil
}

// findOwned treats another user's thread exactly like a missing one.
func (c *threadService) findOwned(ctx context.Context, uow unitofwork.UnitOfWork, userId, id uuid.UUID) (*entity.Thread, error) {
	thread, err := uow.ThreadRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.OwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, serverutils.NewPersistenceError("Failed to load thread", err)
	}
	if thread == nil {
		return nil, serverutils.NewNotFoundError("Thread not found")
	}
	return thread, nil
}

func (c *threadService) publish(ctx context.Context, eventType string, thread *entity.Thread) {
	evt := events.NewThreadEvent(eventType, thread.Id.String(), thread.UserId.String(), thread.Title, c.now())
	if err := c.publisher.Publish(ctx, evt); err != nil {
		c.logger.Warn("ThreadService", "Failed to publish thread event", map[string]interface{}{
			"event":     eventType,
			"thread_id": thread.Id.String(),
			"error":     err.Error(),
		})
	}
}

func toThreadResponse(t *entity.Thread) *dto.ThreadResponse {
	return &dto.ThreadResponse{
		Id:                t.Id,
		Title:             t.Title,
		Content:           t.Content,
		Reasoning:         t.Reasoning,
		ReasoningDuration: t.ReasoningDuration,
		Options:           t.Options,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
