// cmd/contract-service/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"home-contracts/internal/api"
	"home-contracts/internal/common/config"
	"home-contracts/internal/common/database"
	"home-contracts/internal/common/logger"
	"home-contracts/internal/common/observability"
	"home-contracts/internal/contracts/audit"
	"home-contracts/internal/contracts/fieldmap"
	"home-contracts/internal/contracts/notify"
	"home-contracts/internal/contracts/orchestrator"
	"home-contracts/internal/contracts/provider"
	"home-contracts/internal/contracts/statuscache"
	"home-contracts/internal/contracts/store"
	"home-contracts/internal/models"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootstrapTemplates := flag.Bool("bootstrap-templates", false, "register pack templates at the provider and exit")
	templatesDir := flag.String("templates-dir", "templates", "directory holding per-pack template HTML (used with -bootstrap-templates)")
	flag.Parse()

	// Bootstrap runs before template ids exist, so it cannot go through the
	// strictly validated config path.
	if *bootstrapTemplates {
		zapLog := logger.New("info", "console")
		defer zapLog.Sync()

		client := provider.NewClient(
			os.Getenv("PROVIDER_BASE_URL"),
			os.Getenv("PROVIDER_API_KEY"),
			30*time.Second,
		)
		if err := runTemplateBootstrap(context.Background(), client, *templatesDir, zapLog); err != nil {
			zapLog.Fatal("template bootstrap failed", zap.Error(err))
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting contract service...",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("contract-service")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init e-signature provider client ---
	providerClient := provider.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.APIKey,
		config.GetDuration(cfg.Provider.Timeout),
	)
	err = retryWithBackoff(func() error {
		return providerClient.Ping(ctx)
	}, 5, 2*time.Second, zapLog, "Provider connection")
	if err != nil {
		zapLog.Fatal("provider unreachable after retries", zap.Error(err))
	}
	zapLog.Info("Provider reachable")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	contractStore := store.NewPostgresStore(pg.DB, log)
	if err := contractStore.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("schema setup failed", zap.Error(err))
	}

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	cache := statuscache.New(redisClient.Client, config.GetDuration(cfg.Orchestrator.StatusCacheTTL), log)

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	trail := audit.New(esClient.Client, cfg.Database.Elasticsearch.AuditIndex, log)

	// Notifications degrade to disabled when AWS credentials are absent.
	var notifier orchestrator.Notifier
	if n, err := notify.New(cfg.Notifications, log); err != nil {
		zapLog.Warn("notifier unavailable, signing links will not be delivered", zap.Error(err))
	} else {
		notifier = n
	}

	orch := orchestrator.New(
		orchestrator.Config{
			Templates: map[models.PackType]string{
				models.PackAgreement: cfg.Provider.TemplateFor(models.PackAgreement),
				models.PackDelivery:  cfg.Provider.TemplateFor(models.PackDelivery),
				models.PackFinal:     cfg.Provider.TemplateFor(models.PackFinal),
			},
			CounterSigner: models.Submitter{
				Name:  cfg.CounterSigner.Name,
				Email: cfg.CounterSigner.Email,
				Role:  models.RoleCounterSigner,
			},
			CallTimeout:          config.GetDuration(cfg.Orchestrator.CallTimeout),
			MaxRetries:           cfg.Orchestrator.MaxRetries,
			RetryInitialDelay:    config.GetDuration(cfg.Orchestrator.RetryInitialDelay),
			AllowPartialAssembly: cfg.Orchestrator.AllowPartialAssembly,
		},
		contractStore, providerClient, cache, trail, notifier, log,
	)

	apiServer := api.NewServer(orch, contractStore, cache, trail, cfg.Provider.WebhookSecret, log)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      apiServer.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: config.GetDuration(cfg.Orchestrator.RequestTimeout) + 5*time.Second,
	}

	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Health & Metrics Server ---
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			checks := map[string]error{
				"postgres":      pg.Ping(r.Context()),
				"redis":         redisClient.Ping(r.Context()),
				"elasticsearch": esClient.Ping(),
				"provider":      providerClient.Ping(r.Context()),
			}

			status, code := "ready", http.StatusOK
			detail := make(map[string]string, len(checks))
			for name, err := range checks {
				if err != nil {
					status, code = "degraded", http.StatusServiceUnavailable
					detail[name] = err.Error()
				} else {
					detail[name] = "ok"
				}
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": status,
				"checks": detail,
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		mux.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.MetricsAddress))
		if err := http.ListenAndServe(cfg.Server.MetricsAddress, mux); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}

	zapLog.Info("Contract service stopped gracefully")
}

// runTemplateBootstrap registers one provider template per pack from HTML
// files named after the pack type. Registration is a one-time administrative
// step; the printed ids go into static configuration.
func runTemplateBootstrap(ctx context.Context, client *provider.Client, dir string, zapLog *zap.Logger) error {
	for _, pack := range models.AllPacks() {
		path := filepath.Join(dir, string(pack)+".html")
		html, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read template source %s: %w", path, err)
		}

		roles := make([]string, 0, len(fieldmap.RolesFor(pack)))
		for _, role := range fieldmap.RolesFor(pack) {
			roles = append(roles, string(role))
		}

		templateID, err := client.CreateTemplate(ctx, string(pack), string(html), roles)
		if err != nil {
			return fmt.Errorf("create template for pack %s: %w", pack, err)
		}

		zapLog.Info("template registered",
			zap.String("pack", string(pack)),
			zap.String("templateId", templateID),
		)
		fmt.Printf("%s: %s\n", pack, templateID)
	}
	return nil
}
