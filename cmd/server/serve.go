package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsdesk/internal/auth"
	"whatsdesk/internal/bot"
	"whatsdesk/internal/config"
	"whatsdesk/internal/crm/bitrix"
	"whatsdesk/internal/database"
	"whatsdesk/internal/dispatch"
	"whatsdesk/internal/flow"
	"whatsdesk/internal/handlers"
	"whatsdesk/internal/jobs"
	"whatsdesk/internal/llm"
	"whatsdesk/internal/middleware"
	"whatsdesk/internal/provider"
	"whatsdesk/internal/realtime"
	"whatsdesk/internal/repositories"
	"whatsdesk/internal/services"
	"whatsdesk/internal/voice"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, webhooks and background jobs",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, log := bootstrap()
	defer log.Sync()

	log.Info("starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Int("port", cfg.App.Port),
	)

	// =========================================================================
	// Database
	// =========================================================================
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if cfg.App.IsDevelopment() {
		if err := database.AutoMigrate(db); err != nil {
			log.Warn("auto migrate failed", zap.Error(err))
		} else {
			log.Info("database auto migration completed")
		}
	}

	// =========================================================================
	// Repositories
	// =========================================================================
	workspaceRepo := repositories.NewWorkspaceRepository(db)
	userRepo := repositories.NewUserRepository(db)
	instanceRepo := repositories.NewInstanceRepository(db)
	contactRepo := repositories.NewContactRepository(db)
	conversationRepo := repositories.NewConversationRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	personaRepo := repositories.NewPersonaRepository(db)
	departmentRepo := repositories.NewDepartmentRepository(db)
	integrationRepo := repositories.NewIntegrationRepository(db)
	knowledgeRepo := repositories.NewKnowledgeRepository(db)
	webhookEventRepo := repositories.NewWebhookEventRepository(db)

	log.Info("repositories initialized")

	// =========================================================================
	// Provider registry
	// =========================================================================
	registry := provider.NewRegistry()
	registry.Register(provider.NewEvolution(cfg.Providers.Evolution, cfg.Providers.Timeout, log))
	registry.Register(provider.NewWAPI(cfg.Providers.WAPI, cfg.Providers.Timeout, log))
	registry.Register(provider.NewAPIBrasil(cfg.Providers.APIBrasil, cfg.Providers.Timeout, log))
	registry.Register(provider.NewGupshup(cfg.Providers.Gupshup, cfg.Providers.Timeout, log))

	log.Info("providers registered", zap.Any("providers", registry.Types()))

	// =========================================================================
	// Outbound plumbing: worker pool, function calls, flow engine, realtime
	// =========================================================================
	pool, err := dispatch.NewPool(cfg.Functions.PoolSize, cfg.Functions.Timeout, log)
	if err != nil {
		log.Fatal("failed to create worker pool", zap.Error(err))
	}
	functions := dispatch.NewFunctionClient(cfg.Functions, log)

	flowPublisher := flow.New(cfg.Kafka, log)
	publisher := realtime.New(cfg.Centrifugo, log)

	// =========================================================================
	// Services
	// =========================================================================
	echo := services.NewEchoCache(services.DefaultEchoTTL)
	jwtService := auth.NewJWTService(cfg.JWT)

	authService := services.NewAuthService(userRepo, jwtService, log)
	crmService := services.NewCRMService(
		conversationRepo,
		messageRepo,
		contactRepo,
		integrationRepo,
		bitrix.NewClient(cfg.Bitrix, log),
		cfg.Bitrix,
		log,
	)
	messageService := services.NewMessageService(
		instanceRepo,
		contactRepo,
		conversationRepo,
		messageRepo,
		echo,
		functions,
		flowPublisher,
		publisher,
		crmService,
		pool,
		log,
	)
	outboundService := services.NewOutboundService(
		instanceRepo,
		contactRepo,
		conversationRepo,
		messageRepo,
		registry,
		echo,
		publisher,
		crmService,
		pool,
		log,
	)
	instanceService := services.NewInstanceService(instanceRepo, registry, publisher, log)
	knowledgeService := services.NewKnowledgeService(knowledgeRepo, pool, cfg.Knowledge, log)

	voiceClient := voice.NewClient(cfg.ElevenLabs, log)
	if !voiceClient.Enabled() {
		log.Warn("elevenlabs not configured, voice replies fall back to text")
	}
	responder := bot.NewResponder(
		conversationRepo,
		messageRepo,
		personaRepo,
		knowledgeRepo,
		llm.NewClient(cfg.LLM, log),
		voiceClient,
		functions,
		bot.NewPromptBuilder(),
		cfg.Knowledge,
		cfg.LLM.DefaultModel,
		log,
	)

	log.Info("services initialized")

	// =========================================================================
	// Background jobs
	// =========================================================================
	scheduler := jobs.NewScheduler(cfg.Jobs, instanceService, webhookEventRepo, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}

	// =========================================================================
	// Handlers
	// =========================================================================
	authHandler := handlers.NewAuthHandler(authService, workspaceRepo, cfg.App.IsProduction(), cfg.JWT.RefreshDuration, log)
	webhookHandler := handlers.NewWebhookHandler(registry, instanceRepo, webhookEventRepo, messageService, outboundService, crmService, log)
	functionHandler := handlers.NewFunctionHandler(responder, outboundService, knowledgeService, crmService, log)
	conversationHandler := handlers.NewConversationHandler(conversationRepo, messageRepo, outboundService, publisher, log)
	instanceHandler := handlers.NewInstanceHandler(instanceService, log)
	contactHandler := handlers.NewContactHandler(contactRepo, log)
	personaHandler := handlers.NewPersonaHandler(personaRepo, responder, log)
	departmentHandler := handlers.NewDepartmentHandler(departmentRepo, log)
	integrationHandler := handlers.NewIntegrationHandler(integrationRepo, log)
	knowledgeHandler := handlers.NewKnowledgeHandler(knowledgeService, log)

	log.Info("handlers initialized")

	// =========================================================================
	// Router
	// =========================================================================
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logging(log))
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	// provider callbacks and service calls carry no browser session
	router.Use(middleware.CSRF(
		"/api/v1/auth/login",
		"/api/v1/auth/refresh",
		"/api/v1/webhook/",
		"/api/v1/functions/",
		"/health",
	))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.App.Name,
			"providers": registry.Types(),
			"workers":   pool.Running(),
		})
	})

	authMiddleware := middleware.AuthMiddleware(jwtService)

	api := router.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong"})
		})

		authHandler.RegisterRoutes(api, authMiddleware, middleware.RateLimit(cfg.RateLimit))
		webhookHandler.RegisterRoutes(api)
		functionHandler.RegisterRoutes(api, middleware.ServiceAuth(cfg.Functions.ServiceKey, jwtService))

		protected := api.Group("")
		protected.Use(authMiddleware)
		{
			conversationHandler.RegisterRoutes(protected)
			instanceHandler.RegisterRoutes(protected)
			contactHandler.RegisterRoutes(protected)
			personaHandler.RegisterRoutes(protected, middleware.RateLimit(cfg.RateLimit))
			departmentHandler.RegisterRoutes(protected)
			integrationHandler.RegisterRoutes(protected)
			knowledgeHandler.RegisterRoutes(protected)

			if !cfg.App.IsProduction() {
				handlers.NewMockHandler(instanceRepo, messageService, log).RegisterRoutes(protected)
				log.Warn("dev simulation routes enabled", zap.String("path", "/api/v1/dev/simulate/inbound"))
			}
		}
	}

	// =========================================================================
	// HTTP server
	// =========================================================================
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.Int("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// =========================================================================
	// Graceful shutdown
	// =========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdown(cfg, log, srv, scheduler, pool, flowPublisher)
	log.Info("server exited")
}

// shutdown stops intake first, then drains the background work it produced
func shutdown(cfg *config.Config, log *zap.Logger, srv *http.Server, scheduler *jobs.Scheduler, pool *dispatch.Pool, flowPublisher flow.Publisher) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	scheduler.Stop(ctx)

	if err := pool.Release(cfg.Functions.Timeout); err != nil {
		log.Warn("worker pool did not drain", zap.Error(err))
	}
	if err := flowPublisher.Close(); err != nil {
		log.Warn("failed to close flow publisher", zap.Error(err))
	}
}
