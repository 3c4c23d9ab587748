package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shelfwise/circulation/internal/audit"
	"github.com/shelfwise/circulation/internal/auth"
	"github.com/shelfwise/circulation/internal/config"
	"github.com/shelfwise/circulation/internal/database"
	"github.com/shelfwise/circulation/internal/database/catalog"
	"github.com/shelfwise/circulation/internal/database/patrons"
	http_controllers "github.com/shelfwise/circulation/internal/http"
	"github.com/shelfwise/circulation/internal/lending"
	"github.com/shelfwise/circulation/internal/scheduler"
	"github.com/shelfwise/circulation/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve starts the HTTP server and blocks until a termination signal,
// then drains within the configured shutdown timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop scheduler and task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

// Run wires up the circulation service and serves it until shutdown.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting Circulation v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	auditor := audit.NewAuditor(cfg.Audit.Dir)

	loanService := lending.NewService(db.DB, lending.Config{
		LoanPeriod: time.Duration(cfg.Lending.LoanPeriodDays) * 24 * time.Hour,
		MaxRetries: cfg.Lending.MaxTxRetries,
	})

	catalogRepo := catalog.NewRepository(db.DB)
	patronsRepo := patrons.NewRepository(db.DB)

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:           cfg.Tasks.Workers,
			MaxRetries:        cfg.Tasks.MaxRetries,
			RetryDelay:        cfg.Tasks.RetryDelay,
			TaskTimeout:       cfg.Tasks.TaskTimeout,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewOverdueNoticeQueue(loanService, auditor),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Initialize authentication if enabled
	var authService *auth.Service
	var authMiddleware *auth.Middleware
	var sessionManager *auth.SessionManager
	var csrfSecret []byte

	if cfg.Auth.Mode == config.AuthModeLocal {
		log.Printf("Authentication mode: local")

		authService = auth.NewService(db.DB, cfg.Auth)

		sqlDB, err := db.DB.DB()
		if err != nil {
			log.Fatalf("Failed to get SQL DB for sessions: %v", err)
		}

		sessionManager, err = auth.NewSessionManager(sqlDB, cfg.Auth)
		if err != nil {
			log.Fatalf("Failed to initialize session manager: %v", err)
		}

		authMiddleware = auth.NewMiddleware(authService, sessionManager, cfg.Auth)

		if cfg.Auth.SessionSecret != "" {
			csrfSecret, err = hex.DecodeString(cfg.Auth.SessionSecret)
			if err != nil {
				// Not hex, use as raw bytes
				csrfSecret = []byte(cfg.Auth.SessionSecret)
			}
		} else {
			secret, err := auth.GenerateSessionSecret()
			if err != nil {
				log.Fatalf("Failed to generate CSRF secret: %v", err)
			}
			csrfSecret, _ = hex.DecodeString(secret)
			log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
		}

		hasStaff, _ := authService.HasStaff()
		if !hasStaff {
			log.Printf("No staff account found. POST /api/setup to create one.")
		}
	} else {
		log.Printf("Authentication mode: none (no authentication required)")
	}

	// Start the periodic overdue sweep
	sweeper := scheduler.NewOverdueSweeper(loanService, taskClient, auditor, cfg.OverdueSweep)
	if err := sweeper.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start overdue sweeper: %v", err)
	}

	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		LoanService:    loanService,
		Catalog:        catalogRepo,
		Patrons:        patronsRepo,
		Auditor:        auditor,
		Sweeper:        sweeper,
		AuthService:    authService,
		AuthMiddleware: authMiddleware,
		SessionManager: sessionManager,
		AuthConfig:     cfg.Auth,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		Version:        version,
	}

	router := http_controllers.NewRouter(routerCfg)

	Serve(router, cfg, func(ctx context.Context) {
		sweeper.Stop()
		if taskClient != nil {
			if !taskClient.Stop(ctx) {
				log.Printf("Task queue did not drain before shutdown deadline")
			}
		}
		if taskCtxCancel != nil {
			taskCtxCancel()
		}
	})
}
