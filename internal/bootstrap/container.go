package bootstrap

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"zara-assistant-be/internal/config"
	"zara-assistant-be/internal/controller"
	"zara-assistant-be/internal/pkg/logger"
	"zara-assistant-be/internal/repository/implementation"
	"zara-assistant-be/internal/service"
	"zara-assistant-be/internal/websocket"
	"zara-assistant-be/pkg/agent"
	"zara-assistant-be/pkg/ai/router"
	"zara-assistant-be/pkg/database"
	"zara-assistant-be/pkg/embedding"
	"zara-assistant-be/pkg/events"
	"zara-assistant-be/pkg/fallback"
	"zara-assistant-be/pkg/llm/factory"
	"zara-assistant-be/pkg/llm/gateway"
	pktNats "zara-assistant-be/pkg/nats"
	"zara-assistant-be/pkg/rag/executor"
	"zara-assistant-be/pkg/rag/planner"
	"zara-assistant-be/pkg/tools"
)

const (
	eventsTopic      = "zara.events"
	embeddingL1TTL   = time.Hour
	embeddingL2TTL   = 24 * time.Hour
	retryBackoffSpan = 8
)

type Container struct {
	// Controllers
	HealthController  controller.IHealthController
	SessionController controller.ISessionController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	WebSocketHub  *websocket.Hub
	Pipeline      *executor.Pipeline
	SessionConfig websocket.SessionConfig

	Logger logger.ILogger

	rdb     *redis.Client
	natsPub *pktNats.Publisher
	pubSub  *gochannel.GoChannel
}

func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	// 1. Infrastructure
	rdb := newRedis(cfg.App.RedisURL, sysLogger)

	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("BOOT", "NATS unavailable, turn events stay in process", map[string]interface{}{"error": err.Error()})
	}

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewStdLogger(false, false),
	)
	bus := events.NewBus(pubSub, eventsTopic)

	var forward events.Publisher
	if natsPub != nil {
		forward = natsPub
	}
	consumerService := service.NewConsumerService(pubSub, eventsTopic, forward, sysLogger)

	// 3. Providers
	retry := fallback.RetryConfig{
		MaxRetries: cfg.Ai.MaxRetries,
		BaseDelay:  cfg.Ai.RetryBaseDelay,
		MaxDelay:   cfg.Ai.RetryBaseDelay * retryBackoffSpan,
	}

	llmBackends, err := factory.NewLLMChain(cfg.Ai.LLMPrimary, cfg.Ai.LLMSecondary)
	if err != nil {
		return nil, err
	}
	llmGateway := gateway.New(llmBackends, retry, cfg.Ai.AttemptTimeout(), sysLogger)
	sysLogger.Info("BOOT", "LLM chain ready", map[string]interface{}{"backends": len(llmBackends)})

	embeddingBackends, err := factory.NewEmbeddingChain(cfg.Ai.EmbeddingPrimary, cfg.Ai.EmbeddingSecondary)
	if err != nil {
		return nil, err
	}
	embedder := embedding.NewChain(embeddingBackends, cfg.Ai.EmbeddingDimension, sysLogger,
		embedding.WithCache(embedding.NewTieredCache(rdb, embeddingL1TTL, embeddingL2TTL)),
		embedding.WithRetry(retry),
		embedding.WithTimeout(cfg.Ai.QuickCallTimeout),
	)
	sysLogger.Info("BOOT", "Embedding chain ready", map[string]interface{}{"backends": len(embeddingBackends), "dimension": cfg.Ai.EmbeddingDimension})

	// 4. Services
	var assistant agent.Agent
	if cfg.Agent.Mode == "remote" {
		assistant = agent.NewRemoteAgent(cfg.Agent.BaseURL, cfg.Ai.QuickCallTimeout, sysLogger)
	} else {
		assistant = agent.NewLocalAgent(llmGateway, cfg.Ai.QuickCallTimeout, sysLogger)
	}

	pipeline := executor.NewPipeline(executor.Dependencies{
		Router:    router.NewRouter(embedder, sysLogger),
		Embedder:  embedder,
		Retriever: implementation.NewPassageRepository(db),
		Planner:   planner.NewPlanner(llmGateway, sysLogger),
		Generator: llmGateway,
		Tools:     tools.NewExecutor(cfg.Tools.APIBase, cfg.Tools.Timeout, sysLogger),
		Enhancer:  assistant,
		Evaluator: assistant,
		Context:   implementation.NewCatalogRepository(db, cfg.Database.ContextCacheTTL),
		Events:    bus,
		Logger:    sysLogger,
	}, executor.Config{
		TopK:            cfg.Ai.TopK,
		FastModeTopK:    cfg.Ai.FastModeTopK,
		QuickTimeout:    cfg.Ai.QuickCallTimeout,
		GenerateTimeout: cfg.Ai.GenerateTimeout,
		Temperature:     cfg.Ai.Temperature,
	})

	wsHub := websocket.NewHub(rdb, bus, sysLogger)

	healthService := service.NewHealthService(
		func(ctx context.Context) error { return database.Ping(ctx, db) },
		redisProbe(rdb),
		natsProbe(natsPub),
		2*time.Second,
	)

	// 5. Controllers
	return &Container{
		HealthController:  controller.NewHealthController(healthService),
		SessionController: controller.NewSessionController(wsHub),

		ConsumerService: consumerService,

		WebSocketHub: wsHub,
		Pipeline:     pipeline,
		SessionConfig: websocket.SessionConfig{
			HeartbeatInterval: cfg.App.HeartbeatInterval,
			DefaultTenant:     cfg.App.DefaultTenant,
		},
		Logger: sysLogger,

		rdb:     rdb,
		natsPub: natsPub,
		pubSub:  pubSub,
	}, nil
}

// Close releases the connections opened by NewContainer.
func (c *Container) Close() {
	if err := c.pubSub.Close(); err != nil {
		c.Logger.Warn("BOOT", "Failed to close event bus", map[string]interface{}{"error": err.Error()})
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
}

// newRedis returns nil when Redis cannot be reached; every consumer treats a
// nil client as "no shared cache".
func newRedis(url string, log logger.ILogger) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("BOOT", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("BOOT", "Redis unavailable, running without shared cache", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func redisProbe(rdb *redis.Client) service.Probe {
	if rdb == nil {
		return nil
	}
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}

func natsProbe(pub *pktNats.Publisher) service.Probe {
	if pub == nil {
		return nil
	}
	return func(context.Context) error {
		if !pub.Connected() {
			return pktNats.ErrDisconnected
		}
		return nil
	}
}
