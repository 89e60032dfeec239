// cmd/filter-agent/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"filter-agent/internal/common/config"
	"filter-agent/internal/common/database"
	commonhttp "filter-agent/internal/common/http"
	"filter-agent/internal/common/logger"
	"filter-agent/internal/common/observability"
	"filter-agent/internal/conversation"
	"filter-agent/internal/engine"
	"filter-agent/internal/intent"
	"filter-agent/internal/matcher"
	"filter-agent/internal/resolver"
	"filter-agent/internal/server"
	"filter-agent/internal/values"

	rf "filter-agent/internal/workers/resolve-filters"
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
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting filter agent...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Backend clients, only for the backends configuration selects ---

	var pg *database.PostgresClient
	if cfg.Database.Postgres.Enabled {
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
	}

	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")

		if exists, err := esClient.IndexExists(ctx, cfg.Values.ElasticsearchIndex); err != nil {
			zapLog.Warn("elasticsearch index check failed", zap.Error(err))
		} else if !exists {
			zapLog.Warn("elasticsearch values index does not exist yet",
				zap.String("index", cfg.Values.ElasticsearchIndex))
		}
	}

	var redis *database.RedisClient
	if cfg.Conversation.Backend == "redis" {
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- Value fetch pipeline ---

	lensFetcher, err := buildFetcher(cfg.Values.LensBackend, cfg, pg, esClient, log)
	if err != nil {
		zapLog.Fatal("lens value backend", zap.Error(err))
	}
	dimensionsFetcher, err := buildFetcher(cfg.Values.DimensionsBackend, cfg, pg, esClient, log)
	if err != nil {
		zapLog.Fatal("dimensions value backend", zap.Error(err))
	}

	valueCache := values.NewCache(
		values.NewRouter(lensFetcher, dimensionsFetcher),
		config.GetDuration(cfg.Values.CacheTTL),
		log,
	)

	// --- Conversation store ---

	var store conversation.Store
	if cfg.Conversation.Backend == "redis" {
		store = conversation.NewRedisStore(redis.Client, config.GetDuration(cfg.Conversation.IdleTimeout), log)
	} else {
		store = conversation.NewMemoryStore(
			config.GetDuration(cfg.Conversation.IdleTimeout),
			config.GetDuration(cfg.Conversation.CleanupInterval),
			log,
		)
	}
	defer store.Close()

	// --- Engine ---

	m := matcher.New(cfg.Resolution.SimilarityThreshold, cfg.Resolution.MaxSuggestions)
	res := resolver.New(valueCache, store, m, cfg.Resolution.SmallValueSetLimit, log)
	extractor := intent.NewOpenAIExtractor(cfg.OpenAI, log)
	eng := engine.New(extractor, res, m, obs, log)

	// --- Optional Camunda worker ---

	if cfg.Camunda.Enabled {
		var zeebeClient zbc.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		if wcfg := config.GetWorkerConfig(cfg, rf.TaskType); wcfg.Enabled {
			handler := rf.NewHandler(
				&rf.Config{
					Timeout: config.GetDuration(wcfg.Timeout),
				},
				eng, log,
			)
			zeebeClient.NewJobWorker().
				JobType(rf.TaskType).
				Handler(handler.Handle).
				MaxJobsActive(wcfg.MaxJobsActive).
				Timeout(config.GetDuration(wcfg.Timeout)).
				Open()

			zapLog.Info("worker started",
				zap.String("taskType", rf.TaskType),
				zap.Int("maxJobsActive", wcfg.MaxJobsActive),
				zap.Int("timeout_ms", wcfg.Timeout),
			)
		}
	}

	// --- HTTP server ---

	srv := server.New(eng, store, cfg, log)
	go func() {
		if err := srv.Start(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}

// buildFetcher maps a configured backend name to a value fetcher.
func buildFetcher(backend string, cfg *config.Config, pg *database.PostgresClient, es *database.ElasticsearchClient, log logger.Logger) (values.Fetcher, error) {
	switch backend {
	case "api", "":
		client := commonhttp.NewClient(config.GetDuration(cfg.ValueService.Timeout))
		return values.NewAPIFetcher(
			client,
			cfg.ValueService.BaseURL,
			cfg.ValueService.SessionCookie,
			cfg.ValueService.MaxRetries,
			cfg.ValueService.MaxValues,
			log,
		), nil

	case "postgres":
		if pg == nil {
			return nil, fmt.Errorf("postgres backend selected but database.postgres is not enabled")
		}
		return values.NewPostgresFetcher(pg.DB, cfg.ValueService.MaxValues, log), nil

	case "elasticsearch":
		if es == nil {
			return nil, fmt.Errorf("elasticsearch backend selected but database.elasticsearch is not enabled")
		}
		return values.NewElasticsearchFetcher(es.Client, cfg.Values.ElasticsearchIndex, cfg.ValueService.MaxValues, log), nil

	default:
		return nil, fmt.Errorf("unknown value backend %q", backend)
	}
}
