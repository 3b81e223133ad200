package controller

import (
	"github.com/gofiber/fiber/v2"

	"zara-assistant-be/internal/service"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	service service.IHealthService
}

func NewHealthController(service service.IHealthService) IHealthController {
	return &healthController{service: service}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
}

// Health answers 200 while the process is serving, even when dependencies
// are down; the body says which.
func (c *healthController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(c.service.Check(ctx.UserContext()))
}
