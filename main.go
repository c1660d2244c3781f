// api/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pulsestream/api/config"
	"pulsestream/api/database"
	"pulsestream/api/handlers"
	"pulsestream/api/middleware"
	"pulsestream/api/ratelimit"
	"pulsestream/api/store"
	"pulsestream/api/worker"
)

func main() {
	// Load .env file at the very start.
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// --- Transactional store (Postgres: events, queue, users) ---
	dbClient, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL")
	}
	defer dbClient.Close()

	// --- Analytical store (ClickHouse) ---
	chClient, err := database.NewClickHouseDB(cfg.ClickHouse)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize ClickHouse")
	}
	defer chClient.Close()

	// --- Rate limiter bucket store (Redis) ---
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Redis")
	}
	defer redisClient.Close()

	// --- Stores ---
	eventStore := store.NewEventStore(dbClient.DB)
	queueStore := store.NewQueueStore(dbClient.DB, store.QueueConfig{
		Visibility:  cfg.VisibilityTimeout,
		MaxAttempts: cfg.MaxAttempts,
		RetryBase:   cfg.RetryBase,
		RetryMax:    cfg.RetryMax,
	})
	analyticsStore := store.NewAnalyticsStore(chClient)
	userStore := store.NewUserStore(dbClient.DB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := analyticsStore.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure ClickHouse schema")
	}

	limiter := ratelimit.New(redisClient, cfg.RateLimitRequests, cfg.RateLimitPeriod)

	// --- Delivery workers ---
	pool := worker.NewPool(queueStore, eventStore, analyticsStore, cfg.WorkerCount, cfg.PollInterval)
	workersDone := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(workersDone)
	}()

	// --- Handlers ---
	eventHandlers := handlers.NewEventHandlers(eventStore, cfg.MaxBatchSize)
	statsHandlers := handlers.NewStatsHandlers(analyticsStore)
	deadLetterHandlers := handlers.NewDeadLetterHandlers(queueStore)
	authHandlers := handlers.NewAuthHandlers(userStore)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORSMiddleware())

	// Liveness: the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: both stores are reachable.
	r.GET("/ready", func(c *gin.Context) {
		pingCtx, pingCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer pingCancel()

		if err := dbClient.DB.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": "postgres: " + err.Error()})
			return
		}
		if err := analyticsStore.Ping(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": "clickhouse: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	api := r.Group("/api")
	api.Use(middleware.RateLimit(limiter, cfg.IngestAPIKey))
	{
		api.POST("/signup", authHandlers.Signup)
		api.POST("/login", authHandlers.Login)
		api.POST("/logout", authHandlers.Logout)

		// Intake: open to producers, gated by the rate limiter only.
		api.POST("/events", eventHandlers.SubmitEvents)

		// Operator surfaces require a valid JWT or the operator key.
		protected := api.Group("/")
		protected.Use(middleware.AuthRequired())
		{
			stats := protected.Group("/stats")
			{
				stats.GET("/dau", statsHandlers.GetDAU)
				stats.GET("/top-events", statsHandlers.GetTopEvents)
				stats.GET("/retention", statsHandlers.GetRetention)
			}

			protected.GET("/dead-letters", deadLetterHandlers.List)
			protected.POST("/dead-letters/:id/requeue", deadLetterHandlers.Requeue)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Int("workers", cfg.WorkerCount).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stop the workers. Any task claimed but unacked at this point comes back
	// after its visibility deadline, so nothing is lost.
	cancel()
	select {
	case <-workersDone:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("workers did not stop in time")
	}

	log.Info().Msg("server exiting")
}
