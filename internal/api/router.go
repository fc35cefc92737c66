package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/finloop/loandesk/internal/api/handlers"
	mw "github.com/finloop/loandesk/internal/api/middleware"
	"github.com/finloop/loandesk/internal/config"
	"github.com/finloop/loandesk/internal/domain"
	"github.com/finloop/loandesk/internal/embedding"
	"github.com/finloop/loandesk/internal/gate"
	"github.com/finloop/loandesk/internal/llm"
	"github.com/finloop/loandesk/internal/service"
	"github.com/finloop/loandesk/internal/store"
)

// App holds the router and request counters for lifecycle management.
type App struct {
	Router       *chi.Mux
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, rdb *redis.Client, logger *zap.Logger) *App {
	// Stores
	historyStore := store.NewHistoryStore(db)
	caseStore := store.NewCaseStore(db)
	profileStore := store.NewProfileStore(rdb, config.SessionTTL())

	// External clients via provider factory
	var embeddingClient domain.EmbeddingClient
	var llmClient domain.LLMClient

	llmProvider := config.LLMProvider()
	embeddingProvider := config.EmbeddingProvider()

	var err error
	llmClient, err = llm.NewClient(llmProvider, config.LLMAPIKey())
	if err != nil {
		logger.Warn("LLM client initialization failed, stages use rule fallbacks", zap.String("provider", llmProvider), zap.Error(err))
	} else {
		logger.Info("LLM client initialized", zap.String("provider", llmProvider))
	}

	embeddingClient, err = embedding.NewClient(embeddingProvider, config.EmbeddingAPIKey())
	if err != nil {
		logger.Warn("Embedding client initialization failed, archival and advisory lookups are skipped", zap.String("provider", embeddingProvider), zap.Error(err))
	} else {
		logger.Info("Embedding client initialized", zap.String("provider", embeddingProvider))
	}

	// Gating classifier is optional: without it, routing relies on the
	// guardrails and the arbiter's fallback table.
	var classifier *gate.Classifier
	if path := config.GatingModelPath(); path != "" {
		classifier, err = gate.LoadClassifier(path)
		if err != nil {
			logger.Warn("gating classifier unavailable", zap.String("path", path), zap.Error(err))
			classifier = nil
		} else {
			logger.Info("gating classifier loaded", zap.String("path", path))
		}
	} else {
		logger.Info("no gating model configured, routing uses fallback only")
	}

	router := gate.NewRouter(
		&gate.Guardrail{
			RiskHigh: config.RiskThresholdHigh(),
			RiskLow:  config.RiskThresholdLow(),
		},
		classifier,
		&gate.Arbiter{
			Threshold:          config.ConfidenceThreshold(),
			FallbackConfidence: config.FallbackConfidence(),
		},
		embeddingClient,
		config.EmbedTimeout(),
		logger,
	)

	// Services
	verificationSvc := service.NewVerificationService(
		historyStore, llmClient, embeddingClient,
		config.IncomeTolerance(),
		config.GenerateTimeout(), config.EmbedTimeout(), config.StoreTimeout(),
		logger,
	)
	decisionSvc := service.NewDecisionService(
		historyStore, caseStore, llmClient, embeddingClient,
		config.LoanTermMonths(), config.LoanFlatRate(), config.BaselineIncome(),
		config.DBRRejectThreshold(), config.MinCreditScore(),
		config.GenerateTimeout(), config.EmbedTimeout(), config.StoreTimeout(),
		logger,
	)
	clarifySvc := service.NewClarificationService(
		llmClient, config.ConsultFieldCutoff(), config.GenerateTimeout(), logger,
	)
	dispatcher := service.NewDispatcher(
		profileStore, router, verificationSvc, decisionSvc, clarifySvc,
		config.StoreTimeout(), logger,
	)

	// Handlers
	turnHandler := handlers.NewTurnHandler(dispatcher)
	profileHandler := handlers.NewProfileHandler(profileStore, dispatcher)

	r := chi.NewRouter()

	// Initialize app with metrics tracking
	app := &App{
		Router:    r,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)                                                 // Generate/extract request ID first
	r.Use(middleware.RealIP)                                            // Extract real IP
	r.Use(metricsCollector.Middleware)                                  // Collect metrics
	r.Use(mw.Logging(logger))                                           // Log all requests
	r.Use(middleware.Recoverer)                                         // Recover from panics
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst())) // Rate limiting

	// Health (no auth)
	r.Get("/health", healthHandler(db, rdb))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		r.Post("/turns", turnHandler.Handle)

		r.Route("/applicants/{id}", func(r chi.Router) {
			r.Get("/profile", profileHandler.Get)
			r.Put("/profile", profileHandler.Upsert)
			r.Post("/collection-complete", profileHandler.CollectionComplete)
			r.Post("/mismatch-resolved", profileHandler.MismatchResolved)
		})
	})

	return app
}

// NewRouter returns just the chi.Mux.
func NewRouter(db *pgxpool.Pool, rdb *redis.Client, logger *zap.Logger) *chi.Mux {
	return NewApp(db, rdb, logger).Router
}

func healthHandler(db *pgxpool.Pool, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.HistoryStore    = (*store.HistoryStore)(nil)
	_ domain.CaseStore       = (*store.CaseStore)(nil)
	_ domain.ProfileStore    = (*store.ProfileStore)(nil)
	_ domain.EmbeddingClient = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient = (*embedding.MockClient)(nil)
	_ domain.LLMClient       = (*llm.OpenAIClient)(nil)
	_ domain.LLMClient       = (*llm.AnthropicClient)(nil)
	_ domain.LLMClient       = (*llm.GeminiClient)(nil)
	_ domain.LLMClient       = (*llm.CerebrasClient)(nil)
	_ domain.LLMClient       = (*llm.MockClient)(nil)
)
