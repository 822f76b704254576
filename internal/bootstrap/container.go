package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Kripu77/prompt-map-sub001/internal/config"
	"github.com/Kripu77/prompt-map-sub001/internal/controller"
	"github.com/Kripu77/prompt-map-sub001/internal/handler"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/metrics"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/ratelimit"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/serverutils"
	"github.com/Kripu77/prompt-map-sub001/internal/repository/unitofwork"
	"github.com/Kripu77/prompt-map-sub001/internal/service"
	"github.com/Kripu77/prompt-map-sub001/internal/websocket"
	"github.com/Kripu77/prompt-map-sub001/pkg/events"
	"github.com/Kripu77/prompt-map-sub001/pkg/llm"
	"github.com/Kripu77/prompt-map-sub001/pkg/llm/factory"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
	pktNats "github.com/Kripu77/prompt-map-sub001/pkg/nats"
)

type Container struct {
	// Controllers
	MindmapController   controller.IMindmapController
	ThreadController    controller.IThreadController
	AnalyticsController controller.IAnalyticsController
	HealthController    controller.IHealthController

	// Background Services (Exposed for main.go to run)
	AnalyticsService service.IAnalyticsService
	WebSocketHub     *websocket.Hub

	WorkspaceHandler *handler.WorkspaceHandler
	Metrics          *metrics.Metrics
	Logger           logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.IsProduction())
	m := metrics.NewMetrics()
	c := &Container{Metrics: m, Logger: sysLogger}

	// 2. Event Bus (in-process analytics queue)
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. LLM
	llmProvider, err := factory.NewLLMProvider(context.Background(), factory.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL(),
		APIKey:   cfg.LLM.APIKey(),
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", llmProvider.Name(), llmProvider.Model())
	classifier := llm.Classifier{Provider: llmProvider, Model: cfg.LLM.ClassifierModel}

	// 4. Infrastructure
	var threadEvents events.Publisher = events.NopPublisher{}
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			threadEvents = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	rdb := connectRedis(cfg.App.RedisURL)
	if rdb != nil {
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	limiter := newLimiter(cfg.RateLimit, rdb)

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.SocketLogFilePath)
	wsHub := websocket.NewHub(rdb, m, wsLogger)

	// 5. Services
	mindmapService := service.NewMindmapService(llmProvider, mindmap.ClassifierFunc(classifier.Classify), m, sysLogger)
	threadService := service.NewThreadService(uowFactory, wsHub.Relay(threadEvents), m, sysLogger)
	analyticsService := service.NewAnalyticsService(pubSub, pubSub, cfg.Analytics.Topic, uowFactory, m, sysLogger)

	collaborators := service.NewMindmapCollaborators(mindmapService)
	workspace := websocket.NewWorkspace(wsHub, websocket.NewSessionStore(websocket.DefaultSessionTTL), websocket.Collaborators{
		Generator: collaborators,
		Streams:   collaborators,
		Shift:     collaborators,
		Threads:   threadService,
		Analytics: analyticsService,
	}, wsLogger)

	// 6. Controllers
	generationMiddleware := []fiber.Handler{
		serverutils.OptionalJwtMiddleware(cfg.Auth.JWTSecret),
		ratelimit.Middleware(limiter, "mindmap", sysLogger, m),
	}
	c.MindmapController = controller.NewMindmapController(mindmapService, cfg.LLM.Timeout, sysLogger, generationMiddleware...)
	c.ThreadController = controller.NewThreadController(threadService, cfg.Auth.JWTSecret)
	c.AnalyticsController = controller.NewAnalyticsController(analyticsService, sysLogger)
	c.HealthController = controller.NewHealthController(cfg.Telemetry.ServiceName, llmProvider.Name())
	c.WorkspaceHandler = handler.NewWorkspaceHandler(workspace, cfg.Auth.JWTSecret, wsLogger)
	c.AnalyticsService = analyticsService
	c.WebSocketHub = wsHub

	return c
}

// Close releases the bus, broker and cache connections.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

// connectRedis returns nil when Redis is not configured or unreachable.
func connectRedis(url string) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func newLimiter(cfg config.RateLimitConfig, rdb *redis.Client) ratelimit.Limiter {
	if cfg.Backend == "redis" {
		if rdb != nil {
			log.Printf("[INFO] Rate limiter: redis (%d per %s)", cfg.Max, cfg.Window)
			return ratelimit.NewRedisLimiter(rdb, cfg.Max, cfg.Window)
		}
		log.Printf("[WARN] Redis rate limiter requested but Redis is unavailable, using memory")
	}
	log.Printf("[INFO] Rate limiter: memory (%d per %s)", cfg.Max, cfg.Window)
	return ratelimit.NewMemoryLimiter(cfg.Max, cfg.Window)
}
