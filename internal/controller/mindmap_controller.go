package controller

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Kripu77/prompt-map-sub001/internal/dto"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/serverutils"
	"github.com/Kripu77/prompt-map-sub001/internal/service"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap/wire"
)

type IMindmapController interface {
	RegisterRoutes(r fiber.Router)
	Generate(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
	TopicShift(ctx *fiber.Ctx) error
}

type mindmapController struct {
	service    service.IMindmapService
	middleware []fiber.Handler
	timeout    time.Duration
	logger     logger.ILogger
}

// NewMindmapController mounts the generation routes behind middleware
// (optional auth, then rate limiting). timeout bounds each LLM call.
func NewMindmapController(service service.IMindmapService, timeout time.Duration, log logger.ILogger, middleware ...fiber.Handler) IMindmapController {
	return &mindmapController{
		service:    service,
		middleware: middleware,
		timeout:    timeout,
		logger:     log,
	}
}

func (c *mindmapController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/mindmap/v1")
	for _, m := range c.middleware {
		h.Use(m)
	}
	h.Post("/generate", c.Generate)
	h.Post("/stream", c.Stream)
	h.Post("/topic-shift", c.TopicShift)
}

func (c *mindmapController) Generate(ctx *fiber.Ctx) error {
	var req mindmap.GenerateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewValidationError("Invalid request body", nil)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx.UserContext(), c.timeout)
	defer cancel()

	res, err := c.service.Generate(callCtx, req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success generate mind map", res))
}

func (c *mindmapController) Stream(ctx *fiber.Ctx) error {
	var req mindmap.GenerateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewValidationError("Invalid request body", nil)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, wire.ContentType)
	ctx.Set(wire.StreamHeader, "v1")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set("X-Accel-Buffering", "no")

	// The fiber ctx is recycled once the handler returns; only the detached
	// user context outlives it.
	parent := context.WithoutCancel(ctx.UserContext())
	timeout := c.timeout

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		streamCtx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		out := &cancelOnWriteError{w: w, cancel: cancel}
		if err := c.service.Stream(streamCtx, req, out); err != nil {
			c.logger.Info("MindmapController", "Stream ended early", map[string]interface{}{
				"error": err.Error(),
			})
		}
	})
	return nil
}

func (c *mindmapController) TopicShift(ctx *fiber.Ctx) error {
	var req dto.TopicShiftRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewValidationError("Invalid request body", nil)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx.UserContext(), c.timeout)
	defer cancel()

	res, err := c.service.CheckTopicShift(callCtx, req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success check topic shift", res))
}

// cancelOnWriteError cancels the stream once the client stops reading, so
// the upstream LLM call is abandoned instead of running to completion.
type cancelOnWriteError struct {
	w      *bufio.Writer
	cancel context.CancelFunc
}

var _ io.Writer = (*cancelOnWriteError)(nil)

func (c *cancelOnWriteError) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if err != nil {
		c.cancel()
	}
	return n, err
}

func (c *cancelOnWriteError) Flush() error {
	if err := c.w.Flush(); err != nil {
		c.cancel()
		return err
	}
	return nil
}
