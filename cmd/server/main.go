package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/admatrix/api/internal/client"
	"github.com/admatrix/api/internal/config"
	"github.com/admatrix/api/internal/handler"
	"github.com/admatrix/api/internal/matrix"
	"github.com/admatrix/api/internal/middleware"
	"github.com/admatrix/api/internal/service"
	"github.com/admatrix/api/internal/store"
	"github.com/admatrix/api/internal/worker"
	ws "github.com/admatrix/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	redisAvailable := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, falling back to in-memory store: %v", err)
		redisAvailable = false
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// External clients
	renderClient := client.NewRenderClient(&cfg.Provider)
	catalogClient := client.NewCatalogClient(&cfg.Catalog)
	if !renderClient.IsConfigured() {
		log.Println("Info: render provider not configured, submissions will fail")
	}

	// Store
	var st store.Store
	if redisAvailable {
		st = store.NewRedisStore(redisClient)
	} else {
		st = store.NewMemoryStore()
	}

	// Services
	policy := matrix.PolicyFromConfig(cfg.Execution.RequiredTypes)
	matrixService := service.NewMatrixService(st, catalogClient, policy)
	executionService := service.NewExecutionService(
		st,
		renderClient,
		nil, // dispatcher wired below
		hub,
		policy,
		time.Duration(cfg.Execution.ProcessingTimeout)*time.Second,
	)

	var asynqClient *asynq.Client
	if redisAvailable {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
		retention := time.Duration(cfg.Execution.JobRetention) * time.Hour
		executionService.SetDispatcher(service.NewAsynqDispatcher(asynqClient, retention))
	} else {
		executionService.SetDispatcher(service.NewInlineDispatcher(executionService, cfg.Execution.SubmitConcurrency))
	}

	// Handlers
	matrixHandler := handler.NewMatrixHandler(matrixService, validate)
	executionHandler := handler.NewExecutionHandler(executionService, validate)
	webhookHandler := handler.NewWebhookHandler(executionService, validate)

	// Auth middleware
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled — using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		apiAuthMiddleware = middleware.NewAuthMiddleware(cfg.JWT.Secret).Authenticate()
	}

	var rateLimiter *middleware.RateLimiter
	if redisAvailable {
		rateLimiter = middleware.NewRateLimiter(redisClient)
	} else {
		rateLimiter = middleware.NewRateLimiter(nil)
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"provider": renderClient.IsConfigured(),
				"catalog":  catalogClient.IsConfigured(),
				"redis":    redisAvailable,
				"auth":     cfg.JWT.Secret != "" || cfg.Gateway.Enabled,
			},
		})
	})

	// Provider callbacks (unauthenticated — providers don't carry our tokens)
	app.Post("/webhooks/render", webhookHandler.Render)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	matrices := api.Group("/matrices")
	matrices.Post("/", matrixHandler.Create)
	matrices.Get("/:matrixId", matrixHandler.Get)
	matrices.Delete("/:matrixId", matrixHandler.Delete)
	matrices.Post("/:matrixId/rows", matrixHandler.AddRow)
	matrices.Delete("/:matrixId/rows/:rowId", matrixHandler.RemoveRow)
	matrices.Post("/:matrixId/rows/:rowId/duplicate", matrixHandler.DuplicateRow)
	matrices.Put("/:matrixId/rows/:rowId/cells/:assetType", matrixHandler.AssignAsset)
	matrices.Delete("/:matrixId/rows/:rowId/cells/:assetType", matrixHandler.RemoveAsset)
	matrices.Post("/:matrixId/rows/:rowId/cells/:assetType/lock", matrixHandler.Lock)
	matrices.Post("/:matrixId/rows/:rowId/cells/:assetType/unlock", matrixHandler.Unlock)
	matrices.Post("/:matrixId/autofill", rateLimiter.AutoFillLimit(cfg.RateLimit.AutoFillPerMin), matrixHandler.AutoFill)
	matrices.Get("/:matrixId/combinations", matrixHandler.Combinations)
	matrices.Post("/:matrixId/execute", rateLimiter.ExecuteLimit(cfg.RateLimit.ExecutePerHour), executionHandler.Start)

	api.Get("/generations/:generationId", executionHandler.GenerationStatus)
	api.Post("/jobs/:jobId/retry", executionHandler.Retry)
	api.Post("/jobs/:jobId/cancel", executionHandler.Cancel)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/generations/:generationId", websocket.New(func(c *websocket.Conn) {
		generationID := c.Params("generationId")
		hub.HandleConnection(c, generationID)
	}))

	// Background processing
	if redisAvailable {
		go startWorkerServer(cfg, executionService)
		go startScheduler(cfg)
	} else {
		go runInlineSweep(cfg, executionService)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, executionService *service.ExecutionService) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Execution.SubmitConcurrency + 2,
			Queues: map[string]int{
				"render":    6,
				"reconcile": 2,
			},
			LogLevel: asynqLogLevel,
		},
	)

	submitWorker := worker.NewSubmitWorker(executionService)
	reconcileWorker := worker.NewReconcileWorker(executionService)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeSubmit, submitWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeReconcile, reconcileWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func startScheduler(cfg *config.Config) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		nil,
	)

	spec := fmt.Sprintf("@every %ds", cfg.Execution.ReconcileInterval)
	if _, err := scheduler.Register(spec, asynq.NewTask(service.TaskTypeReconcile, nil), asynq.Queue("reconcile")); err != nil {
		log.Printf("Failed to register reconcile schedule: %v", err)
		return
	}
	if err := scheduler.Run(); err != nil {
		log.Printf("Scheduler error: %v", err)
	}
}

// runInlineSweep replaces the asynq scheduler when Redis is unavailable.
func runInlineSweep(cfg *config.Config, executionService *service.ExecutionService) {
	interval := time.Duration(cfg.Execution.ReconcileInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if err := executionService.ReconcileSweep(context.Background()); err != nil {
			log.Printf("Reconcile sweep error: %v", err)
		}
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
