package websocket

import (
	"context"

	"github.com/gofiber/websocket/v2"

	"zara-assistant-be/internal/pkg/logger"
)

// ServeWs returns the fiber WebSocket handler. Each connection gets its own
// Session; the handler returns once the session has fully shut down.
func ServeWs(hub *Hub, runner TurnRunner, cfg SessionConfig, log logger.ILogger) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		session := NewSession(c, runner, cfg, log)
		ctx := context.Background()

		hub.Register(ctx, session.ID)
		defer hub.Unregister(ctx, session.ID)

		if err := session.Run(ctx); err != nil {
			log.Warn("WS", "Session ended with error", map[string]interface{}{"session_id": session.ID, "error": err.Error()})
		}
	}
}
