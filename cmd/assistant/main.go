// cmd/assistant/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shop-assistant/internal/common/config"
	"shop-assistant/internal/common/database"
	"shop-assistant/internal/common/logger"
	"shop-assistant/internal/common/observability"
	contextstore "shop-assistant/internal/dialogue/context-store"
	intentrouter "shop-assistant/internal/dialogue/intent-router"
	"shop-assistant/internal/dialogue/orchestrator"
	entityextractor "shop-assistant/internal/nlu/entity-extractor"
	intentclassifier "shop-assistant/internal/nlu/intent-classifier"
	orderworkflow "shop-assistant/internal/orders/order-workflow"
	"shop-assistant/internal/repository/catalog"
	"shop-assistant/internal/repository/orders"
	"shop-assistant/internal/repository/users"
	productsearch "shop-assistant/internal/search/product-search"
	"shop-assistant/internal/transport"
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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting shop assistant...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

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

	// --- Catalog backend ---
	categories := entityextractor.CategoryTable(cfg.NLU.Categories)
	if len(categories) == 0 {
		categories = entityextractor.DefaultCategories
	}

	pgCatalog := catalog.NewPostgresCatalog(pg.DB, categories, log)

	var searchBackend productsearch.Catalog = pgCatalog
	if cfg.Catalog.Backend == "elasticsearch" {
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
		searchBackend = catalog.NewElasticsearchCatalog(esClient.Client, cfg.Catalog.Index, categories, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- NLU ---
	brands := cfg.NLU.Brands
	if len(brands) == 0 {
		brands = entityextractor.DefaultBrands
	}
	extractor := entityextractor.New(categories, brands)

	classifier := intentclassifier.NewClassifier(&intentclassifier.Config{
		BaseURL:    cfg.NLU.ModelServer.BaseURL,
		Timeout:    cfg.NLU.ModelServer.Timeout,
		MaxRetries: cfg.NLU.ModelServer.MaxRetries,
	}, log)

	if err := classifier.Warmup(ctx); err != nil {
		// The rule scorer covers classification until the model comes back.
		zapLog.Warn("intent model backend not reachable at startup", zap.Error(err))
	}

	// --- Dialogue core ---
	store := contextstore.NewRedisStore(redisClient.Client, cfg.Dialogue.IdleExpiry, log)
	engine := productsearch.NewEngine(searchBackend, log)
	ordersRepo := orders.NewRepository(pg.DB, log)
	usersRepo := users.NewRepository(pg.DB, log)
	workflow := orderworkflow.NewMachine(ordersRepo, pgCatalog, log)

	router := intentrouter.NewRouter(intentrouter.Config{
		ConfidenceFloor: cfg.Dialogue.ConfidenceFloor,
		SwitchThreshold: cfg.Dialogue.SwitchThreshold,
		MaxResults:      cfg.Dialogue.MaxResults,
	}, engine, workflow, usersRepo, log)

	var fallback orchestrator.IntentClassifier
	if cfg.NLU.RuleFallback {
		fallback = intentclassifier.NewRuleScorer()
	}
	orch := orchestrator.New(store, classifier, fallback, extractor, router, obs, log)

	// --- HTTP transport ---
	server := transport.NewServer(orch, log)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: server.Handler(),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}
