package controller

import (
	"github.com/gofiber/fiber/v2"

	"zara-assistant-be/internal/dto"
	"zara-assistant-be/internal/pkg/serverutils"
	"zara-assistant-be/internal/websocket"
)

// SessionLister is the read side of the WebSocket hub.
type SessionLister interface {
	Count() int
	Sessions() []websocket.SessionInfo
}

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Count(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
}

type sessionController struct {
	hub SessionLister
}

func NewSessionController(hub SessionLister) ISessionController {
	return &sessionController{hub: hub}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/sessions")
	h.Get("/count", c.Count)
	h.Get("/", c.List)
}

func (c *sessionController) Count(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success count sessions", dto.SessionCountResponse{Active: c.hub.Count()}))
}

func (c *sessionController) List(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success list sessions", c.hub.Sessions()))
}
