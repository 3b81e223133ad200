package websocket

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/pkg/events"
	"zara-assistant-be/pkg/metrics"
)

const clusterChannel = "cluster_events"

// SessionInfo describes one live session on this instance.
type SessionInfo struct {
	ID       string    `json:"id"`
	OpenedAt time.Time `json:"opened_at"`
}

// Hub tracks the sessions open on this instance and announces opens and
// closes to the cluster through Redis and to the local event bus. Redis and
// the bus are both optional.
type Hub struct {
	sessions *gocache.Cache
	rdb      *redis.Client
	events   events.Publisher
	instance string
	logger   logger.ILogger
}

func NewHub(rdb *redis.Client, publisher events.Publisher, log logger.ILogger) *Hub {
	instance, _ := os.Hostname()
	return &Hub{
		sessions: gocache.New(gocache.NoExpiration, 0),
		rdb:      rdb,
		events:   publisher,
		instance: instance,
		logger:   log,
	}
}

func (h *Hub) Register(ctx context.Context, id string) {
	h.sessions.Set(id, SessionInfo{ID: id, OpenedAt: time.Now()}, gocache.NoExpiration)
	metrics.SessionsActive.Inc()
	h.logger.Info("WS", "Session opened", map[string]interface{}{"session_id": id, "active": h.Count()})
	h.announce(ctx, events.TypeSessionOpened, id)
}

func (h *Hub) Unregister(ctx context.Context, id string) {
	if _, ok := h.sessions.Get(id); !ok {
		return
	}
	h.sessions.Delete(id)
	metrics.SessionsActive.Dec()
	h.logger.Info("WS", "Session closed", map[string]interface{}{"session_id": id, "active": h.Count()})
	h.announce(ctx, events.TypeSessionClosed, id)
}

// Count returns the number of sessions open on this instance.
func (h *Hub) Count() int {
	return h.sessions.ItemCount()
}

// Sessions lists the local sessions, oldest first.
func (h *Hub) Sessions() []SessionInfo {
	items := h.sessions.Items()
	out := make([]SessionInfo, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(SessionInfo))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

func (h *Hub) announce(ctx context.Context, eventType, id string) {
	ev := events.SessionEvent{Type: eventType, SessionID: id, Instance: h.instance, OccurredAt: time.Now()}

	if h.events != nil {
		if err := h.events.Publish(ctx, ev); err != nil {
			h.logger.Warn("WS", "Failed to publish session event", map[string]interface{}{"session_id": id, "error": err.Error()})
		}
	}

	if h.rdb == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":       eventType,
		"session_id": id,
		"instance":   h.instance,
	})
	if err != nil {
		return
	}
	if err := h.rdb.Publish(ctx, clusterChannel, payload).Err(); err != nil {
		h.logger.Warn("WS", "Failed to publish cluster event", map[string]interface{}{"session_id": id, "error": err.Error()})
	}
}
