package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sgavilanez/planea-api/docs" // Swagger docs
	"github.com/sgavilanez/planea-api/internal/config"
	"github.com/sgavilanez/planea-api/internal/database"
	"github.com/sgavilanez/planea-api/internal/handlers"
	"github.com/sgavilanez/planea-api/internal/jobs"
	"github.com/sgavilanez/planea-api/internal/middleware"
	"github.com/sgavilanez/planea-api/internal/repository"
	"github.com/sgavilanez/planea-api/internal/services"
	"github.com/sgavilanez/planea-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title Planea API
// @version 1.0
// @description REST API for personal finance planning: accounts, loans, recurring obligations and budgets

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment)

	// Initialize Sentry when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(repos, worker, cfg, db)

	// Schedule recurring jobs
	scheduleJobs(worker, svcs)

	// Start the materialization daemon
	if cfg.SchedulerEnabled {
		if err := svcs.Scheduler.Start(); err != nil {
			logger.Error("Failed to start scheduler", "error", err)
		} else {
			logger.Info("Scheduler started", "interval", cfg.SchedulerInterval)
		}
	}

	// Initialize handlers
	h := handlers.NewHandlers(svcs)

	// Setup router
	router := setupRouter(h, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Stop the materialization daemon
	svcs.Scheduler.Stop()
	logger.Info("Scheduler stopped")

	// Shutdown background worker
	worker.Shutdown()
	logger.Info("Background worker stopped")

	// Flush Sentry events before exit
	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Redirect root to swagger
		router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
		})

		// Swagger documentation
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

		// Health check (public)
		v1.GET("/health", h.Health.Index)

		// Protected routes (requires authentication)
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			// Accounts and ledger entries
			accounts := protected.Group("/accounts")
			{
				accounts.GET("", h.Account.Index)
				accounts.POST("", h.Account.Create)
				accounts.GET("/:account_id/entries", h.Account.Entries)
				accounts.POST("/:account_id/entries", h.Account.PostEntry)
				accounts.POST("/:account_id/recalculate", h.Account.Recalculate)
			}
			protected.PUT("/entries/:entry_id", h.Account.UpdateEntry)
			protected.POST("/entries/:entry_id/revert", h.Account.RevertEntry)

			// Loans and their payment lifecycle
			loans := protected.Group("/loans")
			{
				loans.GET("", h.Loan.Index)
				loans.POST("", h.Loan.Create)
				loans.GET("/:loan_id", h.Loan.Show)
				loans.PUT("/:loan_id", h.Loan.Update)
				loans.DELETE("/:loan_id", h.Loan.Delete)
				loans.POST("/:loan_id/payments", h.Loan.RecordPayment)
				loans.POST("/:loan_id/skip", h.Loan.Skip)
				loans.POST("/:loan_id/payoff", h.Loan.Payoff)
				loans.GET("/:loan_id/simulate_payoff", h.Loan.SimulatePayoff)
			}

			// Recurring obligations
			obligations := protected.Group("/obligations")
			{
				obligations.GET("", h.Obligation.Index)
				obligations.POST("", h.Obligation.Create)
				obligations.GET("/due", h.Obligation.Due)
				obligations.GET("/:obligation_id", h.Obligation.Show)
				obligations.PUT("/:obligation_id", h.Obligation.Update)
				obligations.DELETE("/:obligation_id", h.Obligation.Delete)
				obligations.GET("/:obligation_id/occurrences", h.Obligation.Occurrences)
				obligations.POST("/:obligation_id/materialize", h.Obligation.Materialize)
				obligations.PUT("/:obligation_id/toggle", h.Obligation.Toggle)
				obligations.POST("/:obligation_id/budget", h.Budget.Apply)
				obligations.DELETE("/:obligation_id/budget", h.Budget.Remove)
			}

			// Budget buckets
			protected.GET("/budget", h.Budget.Index)

			// Notifications
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.Notification.Index)
				notifications.POST("/mark_all_as_read", h.Notification.MarkAllAsRead)
			}

			// Admin-only routes
			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.GET("/scheduler/status", h.Scheduler.Status)
				admin.POST("/scheduler/start", h.Scheduler.Start)
				admin.POST("/scheduler/stop", h.Scheduler.Stop)
				admin.POST("/scheduler/run", h.Scheduler.RunNow)
				admin.GET("/jobs/status", h.Job.Status)
				admin.GET("/audits", h.Audit.Index)
			}
		}
	}

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services) {
	// Remind users about manual obligations that are due
	worker.ScheduleEvery(1*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Checking overdue obligations...")
		return svcs.Obligation.NotifyOverdue(ctx, time.Now())
	})

	logger.Info("Scheduled recurring jobs")
}
