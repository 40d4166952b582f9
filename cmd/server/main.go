package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/dennisdiepolder/callboard/internal/aggregator"
	"github.com/dennisdiepolder/callboard/internal/api"
	"github.com/dennisdiepolder/callboard/internal/cache"
	"github.com/dennisdiepolder/callboard/internal/config"
	"github.com/dennisdiepolder/callboard/internal/counter"
	"github.com/dennisdiepolder/callboard/internal/leads"
	"github.com/dennisdiepolder/callboard/internal/metrics"
	"github.com/dennisdiepolder/callboard/internal/sheets"
	"github.com/dennisdiepolder/callboard/internal/storage"
	"github.com/dennisdiepolder/callboard/internal/ticker"
	"github.com/dennisdiepolder/callboard/internal/timeslot"
	"github.com/dennisdiepolder/callboard/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("sheets_mode", cfg.SheetsMode).
		Str("call_log_source", cfg.CallLogSource).
		Str("cache_mode", cfg.CacheMode).
		Str("timezone", cfg.Location.String()).
		Msg("starting callboard server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Workbook
	var (
		wb    sheets.Workbook
		memWB *sheets.MemoryWorkbook
	)
	switch cfg.SheetsMode {
	case config.SheetsModeGoogle:
		wb, err = sheets.NewGoogleWorkbook(ctx, cfg.Google, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create Google Sheets client")
		}
	default:
		memWB, err = sheets.LoadDir(cfg.SheetsFixtureDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.SheetsFixtureDir).Msg("failed to load sheet fixtures")
		}
		wb = memWB
		log.Info().Str("dir", cfg.SheetsFixtureDir).Msg("using in-memory workbook")
	}

	// Call-log row source
	var source aggregator.RowSource = sheets.NewSource(wb, cfg.CallLogSheets)
	if cfg.CallLogSource == config.SourceDynamo {
		dynamoStore, err := storage.NewDynamoDBStore(ctx, cfg.Dynamo, cfg.Columns, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize DynamoDB call log")
		}
		source = dynamoStore
	}

	// Cache
	var store cache.Store = cache.NewMemoryStore()
	if cfg.CacheMode == config.CacheModeRedis {
		redisStore, err := cache.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisStore.Close()
		store = redisStore
	}
	responseCache := cache.New(store, cfg.CacheMode, cfg.CacheDuration, log.Logger)

	// Leads database is optional
	var leadRepo api.LeadLister
	if cfg.DatabaseURL != "" {
		repo, err := leads.Connect(ctx, cfg.DatabaseURL, cfg.LeadsTable, log.Logger)
		if err != nil {
			log.Error().Err(err).Msg("leads database unavailable, /api/leads disabled")
		} else {
			defer repo.Close()
			leadRepo = repo
		}
	}

	table := timeslot.Default()
	defaults := aggregator.Params{
		Agents:             cfg.TargetAgents,
		MinDurationSeconds: cfg.MinCallDuration,
		Rule:               cfg.DurationRule,
	}

	svc := aggregator.NewService(source, cfg.Columns, table, log.Logger)
	writer := counter.NewWriter(wb, cfg.CounterSheets, table, cfg.Location, log.Logger)

	matrixHandler := api.NewCallMatrixHandler(svc, responseCache, defaults, cfg.Location, log.Logger)

	// Keep today's matrix warm in the background
	if cfg.CacheWarmInterval > 0 {
		warmer := ticker.NewTicker(matrixHandler.Refresh, cfg.CacheWarmInterval, cfg.Google.Timeout, log.Logger)
		go warmer.Start(ctx)
	}

	handlers := api.Handlers{
		Matrix:   matrixHandler,
		Counter:  api.NewCounterHandler(writer, responseCache, log.Logger),
		FilmData: api.NewFilmDataHandler(wb, cfg.FilmDataSheet, responseCache, log.Logger),
		Leads:    api.NewLeadsHandler(leadRepo, log.Logger),
		Cache:    api.NewCacheHandler(responseCache, log.Logger),
	}

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", newHealthHandler(responseCache))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	handlers.Routes(r)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Persist counter writes made against the in-memory workbook
	if memWB != nil {
		if err := memWB.SaveDir(cfg.SheetsFixtureDir); err != nil {
			log.Error().Err(err).Str("dir", cfg.SheetsFixtureDir).Msg("failed to save sheet fixtures")
		}
	}

	log.Info().Msg("server stopped")
}

type healthResponse struct {
	Status    string       `json:"status"`
	Service   string       `json:"service"`
	Timestamp string       `json:"timestamp"`
	Cache     cache.Status `json:"cache"`
}

// newHealthHandler handles health check requests and reports cache contents
func newHealthHandler(c *cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:    "ok",
			Service:   "callboard",
			Timestamp: time.Now().Format(time.RFC3339),
			Cache:     c.Status(r.Context()),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}
