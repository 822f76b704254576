package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Kripu77/prompt-map-sub001/internal/pkg/serverutils"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	service  string
	provider string
	started  time.Time
}

func NewHealthController(service, provider string) IHealthController {
	return &healthController{service: service, provider: provider, started: time.Now()}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("OK", fiber.Map{
		"status":   "ok",
		"service":  c.service,
		"provider": c.provider,
		"uptime":   time.Since(c.started).Round(time.Second).String(),
	}))
}
