package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/arturoeanton/go-diff-auditor/internal/adapter/ai"
	"github.com/arturoeanton/go-diff-auditor/internal/adapter/audit"
	"github.com/arturoeanton/go-diff-auditor/internal/adapter/store"
	"github.com/arturoeanton/go-diff-auditor/internal/cache"
	"github.com/arturoeanton/go-diff-auditor/internal/diff"
	"github.com/arturoeanton/go-diff-auditor/internal/domain"
	"github.com/arturoeanton/go-diff-auditor/internal/handler"
	"github.com/arturoeanton/go-diff-auditor/internal/middleware"
	"github.com/arturoeanton/go-diff-auditor/internal/port"
	"github.com/arturoeanton/go-diff-auditor/internal/ratelimit"
	"github.com/arturoeanton/go-diff-auditor/internal/service"
	"github.com/arturoeanton/go-diff-auditor/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting Diff Auditor",
		"port", cfg.Port,
		"akash_base_url", cfg.AkashBaseURL,
		"rate_limit_per_minute", cfg.RateLimitPerMinute,
		"history_enabled", cfg.DatabaseURL != "",
	)

	if cfg.AkashAPIKey == "" {
		slog.Warn("AKASHML_API_KEY not set; provider calls will fail authentication")
	}

	// ── History store (optional) ─────────────────────────────────────────
	var historyStore *store.PostgresStore
	if cfg.DatabaseURL != "" {
		var err error
		historyStore, err = store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer historyStore.Close()
	}

	// ── Adapters ─────────────────────────────────────────────────────────
	akash := ai.NewAkashClient(ai.Config{
		BaseURL:    cfg.AkashBaseURL,
		APIKey:     cfg.AkashAPIKey,
		MaxRetries: cfg.MaxRetries,
		Models: map[domain.Depth]string{
			domain.DepthQuick:    cfg.ModelQuick,
			domain.DepthStandard: cfg.ModelStandard,
			domain.DepthDeep:     cfg.ModelDeep,
		},
	})

	// ── Audit Engine (Strategy Pattern) ──────────────────────────────────
	engine := port.NewAuditEngine(
		audit.NewSecurityStrategy(akash),
		audit.NewQualityStrategy(akash),
		audit.NewPerformanceStrategy(akash),
		audit.NewBestPracticesStrategy(akash),
	)

	// ── Services ─────────────────────────────────────────────────────────
	results := cache.New(time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.CacheMaxEntries)
	limiter := ratelimit.New(cfg.RateLimitPerMinute, time.Minute)

	orchestrator := service.NewOrchestrator(engine, akash, results, service.Config{
		Limits: diff.Limits{
			MaxBytes:   cfg.MaxDiffBytes,
			MaxLines:   cfg.MaxDiffLines,
			MaxLineLen: cfg.MaxLineChars,
			MaxFiles:   cfg.MaxFiles,
		},
		ChunkChars: cfg.ChunkChars,
		Timeout:    time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	})

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.RequestTimeoutSeconds+30) * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Split(cfg.CORSAllowedOrigins, ","),
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── API Routes ───────────────────────────────────────────────────────
	api := app.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Limiter:           limiter,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	}))

	auditHandler := handler.NewAuditHandler(
		orchestrator, engine, akash, historyStore,
		time.Duration(cfg.RequestTimeoutSeconds)*time.Second,
	)
	auditHandler.Register(api)

	if historyStore != nil {
		historyHandler := handler.NewHistoryHandler(historyStore)
		historyHandler.Register(api)
	}

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
