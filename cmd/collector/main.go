// Command collector is the background data service. It polls the Polymarket
// Gamma API on a fixed interval and maintains the rolling market dataset:
// current snapshots, time-series history, creation events, and the fetch
// audit log.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mkurtz/polymarket-data/internal/api"
	"github.com/mkurtz/polymarket-data/internal/collector"
	"github.com/mkurtz/polymarket-data/internal/config"
	"github.com/mkurtz/polymarket-data/internal/database"
	"github.com/mkurtz/polymarket-data/internal/scheduler"
	"github.com/mkurtz/polymarket-data/internal/store"
	"github.com/mkurtz/polymarket-data/internal/store/postgres"
	"github.com/mkurtz/polymarket-data/internal/store/sqlite"
	"github.com/mkurtz/polymarket-data/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	interval := flag.Int("interval", 0, "fetch interval in minutes (1-60, default 5)")
	dbPath := flag.String("db-path", "", "sqlite database file path")
	verbose := flag.Bool("verbose", false, "enable detailed per-cycle logging")
	flag.Parse()

	// Local development overrides (.env is optional).
	_ = godotenv.Load()

	// Load configuration; flags override file values.
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = config.Default()
	}
	if *interval != 0 {
		cfg.Collector.Interval = time.Duration(*interval) * time.Minute
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *verbose {
		cfg.Verbose = true
	}

	// Set up structured logging.
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"interval", cfg.Collector.Interval,
		"driver", cfg.Database.Driver,
	)

	// Handle shutdown signals.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Open the store.
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Create the API client.
	client := api.NewClient(
		cfg.API.BaseURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRequestSpacing(cfg.API.RequestSpacing),
		api.WithPageSize(cfg.API.PageSize),
		api.WithRetryPolicy(api.RetryPolicy{
			MaxAttempts: cfg.API.MaxRetries,
			BaseDelay:   cfg.API.RetryBaseDelay,
			Multiplier:  cfg.API.RetryMultiplier,
			MaxDelay:    30 * time.Second,
		}),
	)

	coll := collector.New(client, st, cfg.Collector.Retention, logger)

	sched := scheduler.New(scheduler.Config{
		Interval: cfg.Collector.Interval,
	}, coll, logger)

	// Read-only health/stats server for the dashboard.
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(st, logger),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	logger.Info("collector running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	// Wait for shutdown.
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop timed out", "error", err)
	}
	healthServer.Shutdown(shutdownCtx)

	logger.Info("collector stopped")
}

// openStore opens the configured storage backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st, err := postgres.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return st, nil
	default:
		logger.Info("opening database", "path", cfg.Database.Path)
		return sqlite.Open(cfg.Database.Path)
	}
}

// createHealthHandler creates the read-only HTTP handler for health checks
// and dashboard stats.
func createHealthHandler(st store.Store, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if err := st.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["store"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["store"] = "connected"
		}

		if stats, err := st.Stats(ctx); err == nil {
			health.Components["markets"] = stats.TotalMarkets
			if stats.LastFetch.IsZero() {
				health.Status = "degraded"
			} else {
				health.Components["last_fetch"] = stats.LastFetch
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		stats, err := st.Stats(ctx)
		if err != nil {
			logger.Error("stats query failed", "error", err)
			http.Error(w, "stats unavailable", http.StatusInternalServerError)
			return
		}

		recent, err := st.RecentFetchLog(ctx, 10)
		if err != nil {
			logger.Error("fetch log query failed", "error", err)
			http.Error(w, "stats unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"total_markets":      stats.TotalMarkets,
			"active_markets":     stats.ActiveMarkets,
			"last_fetch":         stats.LastFetch,
			"successful_fetches": stats.SuccessfulFetches,
			"new_markets_24h":    stats.NewMarkets24h,
			"recent_fetches":     recent,
		})
	})

	return mux
}
