package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Kripu77/prompt-map-sub001/internal/dto"
	"github.com/Kripu77/prompt-map-sub001/internal/entity"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/metrics"
	"github.com/Kripu77/prompt-map-sub001/internal/repository/unitofwork"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

// Anonymous record statuses used as metric labels.
const (
	AnalyticsQueued  = "queued"
	AnalyticsStored  = "stored"
	AnalyticsFailed  = "failed"
	AnalyticsDropped = "dropped"
)

type IAnalyticsService interface {
	// Enqueue queues an anonymous record; storage happens in Consume.
	Enqueue(ctx context.Context, req *dto.AnonymousMindmapRequest) error
	RecordAnonymous(ctx context.Context, record mindmap.AnonymousRecord) error
	Consume(ctx context.Context) error
}

type analyticsService struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	metrics    *metrics.Metrics
	logger     logger.ILogger
	now        func() time.Time
}

var _ mindmap.AnonymousRecorder = (*analyticsService)(nil)

func NewAnalyticsService(
	publisher message.Publisher,
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	m *metrics.Metrics,
	log logger.ILogger,
) IAnalyticsService {
	return &analyticsService{
		publisher:  publisher,
		subscriber: subscriber,
		topicName:  topicName,
		uowFactory: uowFactory,
		metrics:    m,
		logger:     log,
		now:        time.Now,
	}
}

func (s *analyticsService) Enqueue(ctx context.Context, req *dto.AnonymousMindmapRequest) error {
	payload, err := json.Marshal(dto.AnonymousMindmapMessage{
		Prompt:     req.Prompt,
		Title:      req.Title,
		Content:    req.Content,
		SessionId:  req.SessionId,
		UserAgent:  req.UserAgent,
		Referrer:   req.Referrer,
		ReceivedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal anonymous record: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(context.WithoutCancel(ctx))
	if err := s.publisher.Publish(s.topicName, msg); err != nil {
		s.count(AnalyticsFailed)
		return fmt.Errorf("publish anonymous record: %w", err)
	}
	s.count(AnalyticsQueued)
	return nil
}

func (s *analyticsService) RecordAnonymous(ctx context.Context, record mindmap.AnonymousRecord) error {
	return s.Enqueue(ctx, &dto.AnonymousMindmapRequest{
		Prompt:    record.Prompt,
		Title:     record.Title,
		Content:   record.Content,
		SessionId: record.SessionID,
		UserAgent: record.UserAgent,
		Referrer:  record.Referrer,
	})
}

func (s *analyticsService) Consume(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks: analytics are best-effort and a redelivered
// message would spin while the database is down.
func (s *analyticsService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.AnonymousMindmapMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.count(AnalyticsDropped)
		s.logger.Error("AnalyticsService", "Failed to unmarshal anonymous record", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	record := &entity.AnonymousMindmap{
		Prompt:    payload.Prompt,
		Title:     payload.Title,
		Content:   payload.Content,
		SessionId: payload.SessionId,
		UserAgent: payload.UserAgent,
		Referrer:  payload.Referrer,
		CreatedAt: payload.ReceivedAt,
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.AnonymousMindmapRepository().Create(ctx, record); err != nil {
		s.count(AnalyticsFailed)
		s.logger.Error("AnalyticsService", "Failed to store anonymous record", map[string]interface{}{
			"message_id": msg.UUID,
			"session_id": payload.SessionId,
			"error":      err.Error(),
		})
		return
	}
	s.count(AnalyticsStored)
}

func (s *analyticsService) count(status string) {
	if s.metrics != nil {
		s.metrics.AnonymousRecordsTotal.WithLabelValues(status).Inc()
	}
}
