package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"zara-assistant-be/internal/dto"
	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/internal/pkg/serverutils"
	"zara-assistant-be/pkg/metrics"
	"zara-assistant-be/pkg/rag"
	"zara-assistant-be/pkg/rag/executor"
	"zara-assistant-be/pkg/rag/message"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	outboundBuffer = 64
)

var errClientClosed = errors.New("client closed the connection")

// Conn is the part of a WebSocket connection a Session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// TurnRunner runs one conversation turn.
type TurnRunner interface {
	Run(ctx context.Context, q rag.Query, emit executor.Emitter) error
}

type SessionConfig struct {
	HeartbeatInterval time.Duration
	DefaultTenant     string
}

// Session owns one client connection. The read/turn loop, the heartbeat and
// the single writer run under one errgroup. Turns run one at a time and every
// frame goes through the writer, so frames leave in emission order.
type Session struct {
	ID             string
	conversationID string

	conn   Conn
	runner TurnRunner
	cfg    SessionConfig
	logger logger.ILogger
	out    chan message.Event
}

func NewSession(conn Conn, runner TurnRunner, cfg SessionConfig, log logger.ILogger) *Session {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 60 * time.Second
	}
	if cfg.DefaultTenant == "" {
		cfg.DefaultTenant = "demo"
	}
	return &Session{
		ID:             uuid.NewString(),
		conversationID: uuid.NewString(),
		conn:           conn,
		runner:         runner,
		cfg:            cfg,
		logger:         log,
		out:            make(chan message.Event, outboundBuffer),
	}
}

// Run blocks until the client disconnects or ctx is cancelled. A normal close
// returns nil. All three goroutines have exited when Run returns.
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.writeLoop(gctx) })
	g.Go(func() error { return s.heartbeat(gctx) })
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error {
		// Unblocks a pending ReadMessage once any goroutine has stopped.
		<-gctx.Done()
		_ = s.conn.Close()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, errClientClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("WS", "Unexpected close", map[string]interface{}{"session_id": s.ID, "error": err.Error()})
			}
			return errClientClosed
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(data) > maxMessageSize {
			if err := s.emit(ctx, message.Status(message.StageError, message.StatusError, "Message too large")); err != nil {
				return err
			}
			continue
		}

		q, err := s.parse(data)
		if err != nil {
			s.logger.Debug("WS", "Rejected inbound message", map[string]interface{}{"session_id": s.ID, "error": err.Error()})
			if err := s.emit(ctx, message.Status(message.StageError, message.StatusError, "Invalid message: "+err.Error())); err != nil {
				return err
			}
			continue
		}

		if err := s.runner.Run(ctx, q, func(e message.Event) error { return s.emit(ctx, e) }); err != nil {
			return err
		}
	}
}

// parse accepts the JSON message form and, for plain-text frames, treats the
// whole frame as the query.
func (s *Session) parse(data []byte) (rag.Query, error) {
	var req dto.ChatMessageRequest
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &req); err != nil {
			return rag.Query{}, fmt.Errorf("malformed JSON: %w", err)
		}
	} else {
		req.Query = trimmed
	}
	req.Query = strings.TrimSpace(req.Query)

	if err := serverutils.ValidateRequest(req); err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return rag.Query{}, errors.New(fe.Message)
		}
		return rag.Query{}, err
	}

	q := rag.Query{
		Text:           req.Query,
		TenantID:       req.TenantID,
		FileID:         req.FileID,
		ConversationID: req.ConversationID,
		Mode:           rag.Mode(req.Mode),
	}
	if q.TenantID == "" {
		q.TenantID = s.cfg.DefaultTenant
	}
	if q.ConversationID == "" {
		q.ConversationID = s.conversationID
	}
	if q.Mode == "" {
		q.Mode = rag.ModeEnhanced
	}
	return q, nil
}

func (s *Session) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.emit(ctx, message.Heartbeat()); err != nil {
				return err
			}
			metrics.HeartbeatsTotal.Inc()
		}
	}
}

// writeLoop is the only goroutine that writes to the connection.
func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-s.out:
			data, err := json.Marshal(e)
			if err != nil {
				s.logger.Error("WS", "Failed to encode event", map[string]interface{}{"session_id": s.ID, "type": e.Type, "error": err.Error()})
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("%w: %v", rag.ErrConnectionLost, err)
			}
		}
	}
}

func (s *Session) emit(ctx context.Context, e message.Event) error {
	select {
	case s.out <- e:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", rag.ErrConnectionLost, ctx.Err())
	}
}
