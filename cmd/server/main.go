package main

import (
	"context"
	"errors"
	"log"
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
	fiberSwagger "github.com/gofiber/swagger"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/clipforge/api/docs"
	"github.com/clipforge/api/internal/app"
	"github.com/clipforge/api/internal/auth"
	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/handler"
	"github.com/clipforge/api/internal/middleware"
	"github.com/clipforge/api/internal/service"
	ws "github.com/clipforge/api/internal/websocket"
	"github.com/clipforge/api/internal/worker"
	"github.com/clipforge/api/pkg/response"
)

// @title          ClipForge API
// @version        1.0
// @description    Turns long-form videos into ranked, captioned short clips.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.ApiDomain != "" {
		docs.SwaggerInfo.Host = cfg.Server.ApiDomain
		docs.SwaggerInfo.Schemes = []string{"https"}
	} else {
		docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port
		docs.SwaggerInfo.Schemes = []string{"http"}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	components, err := app.Build(ctx, cfg, redisClient)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	defer components.Close()
	log.Printf("Info: store=%s providers=%s", cfg.Store.Driver, strings.Join(components.Acquirer.Providers(), ","))

	hub := ws.NewHub()
	queue := worker.NewQueue(asynqClient, time.Duration(cfg.Worker.JobTimeoutMinutes)*time.Minute)
	orchestrator := components.Orchestrator(queue, hub)
	jobService := service.NewJobService(orchestrator, queue)

	verifier := newVerifier(ctx, cfg)
	fiberApp := newServer(cfg, components, jobService, hub, redisClient, verifier)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		interval := time.Duration(cfg.Workspace.SweepIntervalMinutes) * time.Minute
		maxAge := time.Duration(cfg.Workspace.MaxAgeHours) * time.Hour
		return components.Workspace.RunSweeper(gctx, interval, maxAge)
	})

	g.Go(func() error {
		srv := newWorkerServer(cfg, redisOpt)
		mux := worker.NewServeMux(
			worker.NewJobWorker(orchestrator),
			worker.NewCleanupWorker(components.Workspace),
		)
		if err := srv.Start(mux); err != nil {
			return err
		}
		<-gctx.Done()
		srv.Shutdown()
		return nil
	})

	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		log.Printf("Server starting on %s", addr)
		return fiberApp.Listen(addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		return fiberApp.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Server error: %v", err)
	}
}

// newVerifier returns the token verifiers enabled by configuration, OIDC first.
func newVerifier(ctx context.Context, cfg *config.Config) auth.Chain {
	var chain auth.Chain
	if cfg.OIDC.Issuer != "" {
		v, err := auth.NewJWKSVerifier(ctx, &cfg.OIDC)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			chain = append(chain, v)
		}
	}
	if cfg.JWT.Secret != "" {
		chain = append(chain, auth.NewHMACVerifier(cfg.JWT.Secret, ""))
	}
	return chain
}

func newServer(
	cfg *config.Config,
	components *app.Components,
	jobService *service.JobService,
	hub *ws.Hub,
	redisClient *redis.Client,
	verifier auth.Chain,
) *fiber.App {
	validate := validator.New()

	jobHandler := handler.NewJobHandler(jobService, validate, int64(cfg.Render.MaxUploadMB)<<20)
	fileHandler := handler.NewFileHandler(components.Workspace)
	authHandler := handler.NewAuthHandler(verifier)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
	})

	fiberApp.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	fiberApp.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"groq":      components.Groq.IsConfigured(),
				"r2":        components.R2.IsConfigured(),
				"auth":      cfg.Auth.Enabled,
				"store":     cfg.Store.Driver,
				"providers": components.Acquirer.Providers(),
			},
			"activeJobs": components.Workspace.Active(),
		})
	})

	fiberApp.Get("/swagger/*", fiberSwagger.HandlerDefault)

	// ForwardAuth verification endpoint (internal, called by the gateway)
	fiberApp.Get("/auth/verify", authHandler.Verify)

	var apiMiddleware []fiber.Handler
	if cfg.Auth.Enabled {
		if cfg.Gateway.Enabled {
			log.Println("Info: Gateway mode enabled, using header-based auth")
			apiMiddleware = append(apiMiddleware, middleware.GatewayAuthMiddleware())
		} else {
			if len(verifier) == 0 {
				log.Fatal("AUTH_ENABLED is set but neither OIDC_ISSUER nor JWT_SECRET is configured")
			}
			apiMiddleware = append(apiMiddleware, middleware.NewAuthMiddleware(verifier).Authenticate())
		}
	} else {
		log.Println("Info: API authentication disabled")
	}

	api := fiberApp.Group("/api", apiMiddleware...)

	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.JobLimit(cfg.RateLimit.JobsPerHour), jobHandler.Create)
	jobs.Post("/upload", rateLimiter.JobLimit(cfg.RateLimit.JobsPerHour), jobHandler.Upload)
	jobs.Get("/:jobId", jobHandler.Status)
	jobs.Get("/:jobId/result", jobHandler.Result)
	jobs.Post("/:jobId/cancel", jobHandler.Cancel)

	api.Get("/files/:jobId/:filename", rateLimiter.FilesLimit(cfg.RateLimit.FilesPerMin), fileHandler.Serve)

	fiberApp.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	fiberApp.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		snapshot, err := jobService.Status(context.Background(), jobID)
		if err != nil {
			log.Printf("Warning: websocket snapshot for job %s: %v", jobID, err)
		}
		hub.HandleConnection(c, jobID, snapshot)
	}))

	return fiberApp
}

func newWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt) *asynq.Server {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			worker.QueueJobs:    6,
			worker.QueueCleanup: 1,
		},
		LogLevel:        asynqLogLevel,
		ShutdownTimeout: 30 * time.Second,
	})
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	errCode := response.CodeServiceError
	switch code {
	case fiber.StatusNotFound:
		errCode = response.CodeNotFound
	case fiber.StatusRequestEntityTooLarge, fiber.StatusBadRequest:
		errCode = response.CodeValidationError
	}
	return response.Error(c, code, errCode, message, nil)
}
