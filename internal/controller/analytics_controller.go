package controller

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Kripu77/prompt-map-sub001/internal/dto"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/serverutils"
	"github.com/Kripu77/prompt-map-sub001/internal/service"
)

type IAnalyticsController interface {
	RegisterRoutes(r fiber.Router)
	RecordAnonymous(ctx *fiber.Ctx) error
}

type analyticsController struct {
	service service.IAnalyticsService
	logger  logger.ILogger
}

func NewAnalyticsController(service service.IAnalyticsService, log logger.ILogger) IAnalyticsController {
	return &analyticsController{service: service, logger: log}
}

func (c *analyticsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/analytics/v1")
	h.Post("/anonymous", c.RecordAnonymous)
}

// RecordAnonymous is fire-and-forget: queueing failures are logged, and the
// client always gets 202 for a valid body.
func (c *analyticsController) RecordAnonymous(ctx *fiber.Ctx) error {
	var req dto.AnonymousMindmapRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewValidationError("Invalid request body", nil)
	}
	if req.UserAgent == "" {
		req.UserAgent = ctx.Get(fiber.HeaderUserAgent)
	}
	if req.Referrer == "" {
		req.Referrer = ctx.Get(fiber.HeaderReferer)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.Enqueue(ctx.UserContext(), &req); err != nil {
		c.logger.Warn("AnalyticsController", "Failed to queue anonymous record", map[string]interface{}{
			"session_id": req.SessionId,
			"error":      err.Error(),
		})
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.AcceptedResponse[any]("Accepted", nil))
}
