package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/authz"
	"chat-gateway/internal/backplane"
	"chat-gateway/internal/chat"
	"chat-gateway/internal/config"
	"chat-gateway/internal/db"
	"chat-gateway/internal/handlers"
	"chat-gateway/internal/health"
	"chat-gateway/internal/logging"
	"chat-gateway/internal/middleware"
	"chat-gateway/internal/observability"
	"chat-gateway/internal/rabbitmq"
	"chat-gateway/internal/repositories"
	"chat-gateway/internal/telemetry"
	"chat-gateway/internal/ws"
)

const auditRoutingKey = "audit.logs"

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}

	database, err := db.Connect(ctx, cfg.DBDSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	messageRepo := repositories.NewMessageRepo(database)
	matchRepo := repositories.NewMatchRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	userRepo := repositories.NewUserRepo(database)

	resolver := auth.NewJWTResolver(cfg.JWTSecret, userRepo)
	gate := authz.NewGate(matchRepo, groupRepo)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	logger.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))
	events := observability.NewEvents(publisher, logger)
	audit := telemetry.NewAuditEmitter(publisher, auditRoutingKey, cfg.ServiceName, cfg.Environment, logger)

	hub := ws.NewHub(logger)
	presence := ws.NewPresence()
	if cfg.RedisURL != "" {
		redisBackplane, err := backplane.NewRedis(ctx, cfg.RedisURL, cfg.BackplaneChannel, hub, logger)
		if err != nil {
			logger.Fatal("failed to connect backplane", zap.Error(err))
		}
		defer redisBackplane.Close()
		hub.SetBackplane(redisBackplane)
		go func() {
			if err := redisBackplane.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("backplane stopped", zap.Error(err))
			}
		}()
	}

	pipeline := chat.NewPipeline(messageRepo, gate, hub, presence, nil, logger)
	gateway := ws.NewGateway(ws.Deps{
		Hub:      hub,
		Presence: presence,
		Pipeline: pipeline,
		Resolver: resolver,
		Users:    userRepo,
		Matches:  matchRepo,
		Groups:   groupRepo,
		Events:   events,
		Audit:    audit,
		Logger:   logger,
	}, ws.Options{
		AllowAnonymous: cfg.AllowAnonymous,
		PresenceScope:  cfg.PresenceScope,
		HistoryLimit:   cfg.HistoryLimit,
		OpTimeout:      cfg.OpTimeout,
		SendBuffer:     cfg.SendBuffer,
	})
	history := handlers.NewHistoryHandler(pipeline, cfg.HistoryLimit, logger)

	if cfg.GRPCHealthAddr != "" {
		healthServer := health.New(database, logger)
		go func() {
			if err := healthServer.Serve(ctx, cfg.GRPCHealthAddr); err != nil {
				logger.Error("grpc health server stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(resolver)

	router.GET("/api/socket/info", handlers.SocketInfo(cfg.SocketHost, cfg.SocketPort))
	router.GET("/healthz", handlers.Healthz(database))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", gateway.Handle)

	router.GET("/chats/:user_id/messages", authMiddleware, history.GetChatMessages)
	router.GET("/groups/:group_id/messages", authMiddleware, history.GetGroupMessages)

	handlers.RegisterDebugRoutes(router, audit, hub, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
