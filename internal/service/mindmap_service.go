package service

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"time"

	"github.com/Kripu77/prompt-map-sub001/internal/dto"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/metrics"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/serverutils"
	"github.com/Kripu77/prompt-map-sub001/pkg/llm"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap/wire"
)

const (
	generationFailedMessage = "Failed to generate mind map"
	emptyResponseMessage    = "The model returned an empty response"
)

type IMindmapService interface {
	// Generate runs a buffered generation. Content without an H1 title is a 422.
	Generate(ctx context.Context, req mindmap.GenerateRequest) (*mindmap.GenerateResult, error)
	// Stream relays a generation to w as wire records and always ends with a
	// finish record unless the client went away.
	Stream(ctx context.Context, req mindmap.GenerateRequest, w io.Writer) error
	// CheckTopicShift never fails on classifier problems; only bad input errors.
	CheckTopicShift(ctx context.Context, req dto.TopicShiftRequest) (mindmap.TopicShiftResult, error)
}

type mindmapService struct {
	provider   llm.LLMProvider
	classifier mindmap.Classifier
	metrics    *metrics.Metrics
	logger     logger.ILogger
	now        func() time.Time
}

func NewMindmapService(provider llm.LLMProvider, classifier mindmap.Classifier, m *metrics.Metrics, log logger.ILogger) IMindmapService {
	return &mindmapService{
		provider:   provider,
		classifier: classifier,
		metrics:    m,
		logger:     log,
		now:        time.Now,
	}
}

func (s *mindmapService) Generate(ctx context.Context, req mindmap.GenerateRequest) (*mindmap.GenerateResult, error) {
	start := s.now()

	msgs, err := BuildMessages(req)
	if err != nil {
		return nil, err
	}
	useCoT := req.Options != nil && req.Options.UseChainOfThought

	raw, err := s.provider.Chat(ctx, msgs, llm.WithReasoning(useCoT))
	elapsed := s.now().Sub(start)
	if err != nil {
		s.record(metrics.ModeBuffered, metrics.OutcomeError, elapsed)
		s.logger.Error("MindmapService", "Generation failed", map[string]interface{}{
			"provider": s.provider.Name(),
			"error":    err.Error(),
		})
		return nil, serverutils.NewUpstreamError(generationFailedMessage, err)
	}

	content, reasoning := mindmap.StripReasoning(raw)
	content = strings.TrimSpace(content)

	if err := mindmap.Validate(content); err != nil {
		if !errors.Is(err, mindmap.ErrMultipleTitles) {
			s.record(metrics.ModeBuffered, metrics.OutcomeInvalid, elapsed)
			return nil, serverutils.NewUnprocessableError("Generated content is not a valid mind map", err)
		}
		s.logger.Warn("MindmapService", "Generated mind map has more than one H1", map[string]interface{}{
			"prompt": req.Prompt,
		})
	}

	s.record(metrics.ModeBuffered, metrics.OutcomeSuccess, elapsed)

	meta := s.metadata(req, content)
	if reasoning != "" {
		meta.Reasoning = reasoning
		meta.ReasoningDuration = seconds(elapsed)
	}
	return &mindmap.GenerateResult{Content: content, Metadata: meta}, nil
}

func (s *mindmapService) Stream(ctx context.Context, req mindmap.GenerateRequest, w io.Writer) error {
	start := s.now()
	enc := wire.NewEncoder(w)

	msgs, err := BuildMessages(req)
	if err != nil {
		_ = enc.WriteError(generationFailedMessage)
		_ = enc.WriteFinish(wire.FinishError)
		return err
	}
	useCoT := req.Options != nil && req.Options.UseChainOfThought

	var (
		splitter thinkSplitter
		content  strings.Builder
		chunks   int
	)
	emit := func(text, reasoning string) error {
		if reasoning != "" {
			if err := enc.WriteReasoning(reasoning); err != nil {
				return err
			}
		}
		if text != "" {
			content.WriteString(text)
			chunks++
			if err := enc.WriteText(text); err != nil {
				return err
			}
		}
		return nil
	}

	err = s.provider.Stream(ctx, msgs, func(c llm.Chunk) error {
		text, reasoning := splitter.Feed(c.Text)
		return emit(text, c.Reasoning+reasoning)
	}, llm.WithReasoning(useCoT))
	if err == nil {
		err = emit(splitter.Flush())
	}
	if s.metrics != nil {
		s.metrics.StreamChunksTotal.Add(float64(chunks))
	}
	elapsed := s.now().Sub(start)

	if err != nil {
		if ctx.Err() != nil {
			s.record(metrics.ModeStreaming, metrics.OutcomeCancelled, elapsed)
			return ctx.Err()
		}
		s.record(metrics.ModeStreaming, metrics.OutcomeError, elapsed)
		s.logger.Error("MindmapService", "Stream failed", map[string]interface{}{
			"provider": s.provider.Name(),
			"chunks":   chunks,
			"error":    err.Error(),
		})
		_ = enc.WriteError(generationFailedMessage)
		_ = enc.WriteFinish(wire.FinishError)
		return err
	}

	if strings.TrimSpace(content.String()) == "" {
		s.record(metrics.ModeStreaming, metrics.OutcomeError, elapsed)
		_ = enc.WriteError(emptyResponseMessage)
		return enc.WriteFinish(wire.FinishError)
	}

	if _, ok := mindmap.FindTitle(content.String()); !ok {
		s.logger.Warn("MindmapService", "Streamed mind map has no H1 title", map[string]interface{}{
			"prompt": req.Prompt,
		})
	}
	s.record(metrics.ModeStreaming, metrics.OutcomeSuccess, elapsed)
	return enc.WriteFinish(wire.FinishStop)
}

func (s *mindmapService) CheckTopicShift(ctx context.Context, req dto.TopicShiftRequest) (mindmap.TopicShiftResult, error) {
	var fields []serverutils.FieldError
	if req.Context == nil || strings.TrimSpace(req.Context.ExistingMindmap) == "" {
		fields = append(fields, serverutils.FieldError{
			Field: "context.existingMindmap", Tag: "required", Message: "context.existingMindmap is required",
		})
	}
	if req.Context == nil || strings.TrimSpace(req.Context.OriginalPrompt) == "" {
		fields = append(fields, serverutils.FieldError{
			Field: "context.originalPrompt", Tag: "required", Message: "context.originalPrompt is required",
		})
	}
	if len(fields) > 0 {
		return mindmap.TopicShiftResult{}, serverutils.NewValidationError("Validation failed", fields)
	}

	result, err := mindmap.NewGate(s.classifier).Evaluate(ctx, req.Payload())

	label := "continue"
	switch {
	case err != nil:
		label = "failed"
		s.logger.Warn("MindmapService", "Topic shift check failed, continuing", map[string]interface{}{
			"error": err.Error(),
		})
	case result.IsTopicShift:
		label = "shift"
	}
	if s.metrics != nil {
		s.metrics.RecordTopicShift(label)
	}
	return result, nil
}

func (s *mindmapService) metadata(req mindmap.GenerateRequest, content string) *mindmap.Metadata {
	return &mindmap.Metadata{
		Title:      mindmap.ExtractTitle(content, req.Prompt),
		Provider:   s.provider.Name(),
		Model:      s.provider.Model(),
		WordCount:  mindmap.WordCount(content),
		NodeCount:  mindmap.CountNodes(mindmap.ParseOutline(content)),
		IsFollowUp: req.Context != nil && req.Context.ExistingMindmap != "",
	}
}

func (s *mindmapService) record(mode, outcome string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordGeneration(mode, outcome, elapsed)
	}
}

func seconds(d time.Duration) int {
	return int(math.Round(d.Seconds()))
}
