// cmd/plan-worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bizplan-workers/internal/common/aws"
	"bizplan-workers/internal/common/camunda"
	"bizplan-workers/internal/common/config"
	"bizplan-workers/internal/common/database"
	"bizplan-workers/internal/common/genai"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/common/observability"
	"bizplan-workers/internal/deferred"
	"bizplan-workers/internal/executor"
	"bizplan-workers/internal/notify"
	"bizplan-workers/internal/pipeline"
	"bizplan-workers/internal/queue"
	"bizplan-workers/internal/repository"
	"bizplan-workers/internal/search"
	"bizplan-workers/internal/service"
	"bizplan-workers/internal/session"
	gp "bizplan-workers/internal/workers/plan-generation/generate-plan"
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

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting plan worker...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("queueBackend", cfg.Generation.QueueBackend),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	if cfg.Tracing.Enabled {
		shutdownTracing, err := observability.InitTracing(cfg.App.Name, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			zapLog.Warn("tracing disabled", zap.Error(err))
		} else {
			defer shutdownTracing()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	if err := database.EnsureSchema(ctx, pg.DB); err != nil {
		zapLog.Fatal("schema setup failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *redis.Client
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(ctx, cfg.Database.Redis)
		return err
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	ai := genai.NewClient(genai.ConfigFrom(cfg.GenAI), log)
	plans := repository.NewPlanRepository(pg.DB, log)

	pipe := pipeline.New(plans, ai, log,
		pipeline.WithHooks(completionHooks(ctx, cfg, zapLog, log)...),
		pipeline.WithRecorder(obs),
	)

	scheduler := deferred.NewScheduler(cfg.Generation.DeferredWorkers, cfg.Generation.DeferredBuffer, log)

	// --- Task queue and its consumer ---
	var (
		taskQueue   executor.TaskQueue
		stopWorker  func(context.Context)
		zeebeHealth func(context.Context) error
	)
	switch cfg.Generation.QueueBackend {
	case config.QueueBackendZeebe:
		var zc *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zc, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zc.Close()

		taskQueue = queue.NewZeebeQueue(zc, cfg.Camunda.ProcessID)
		zeebeHealth = zc.HealthCheck

		jobCfg := &gp.Config{Timeout: config.GetDuration(cfg.Camunda.Timeout)}
		handler := gp.NewHandler(jobCfg, pipe, log)
		w := camunda.NewWorker(zc.GetClient(), gp.TaskType, cfg.Camunda.MaxJobsActive, jobCfg.ActivationTimeout(), handler.Handle, log)
		w.Start()
		stopWorker = w.Stop

	default:
		taskQueue = queue.NewRedisQueue(rdb)
		consumer := queue.NewConsumer(rdb, cfg.Generation.QueueCategory, pipe,
			config.GetDuration(cfg.Generation.PollInterval), log)

		consumerCtx, cancelConsumer := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			consumer.Start(consumerCtx)
			close(done)
		}()
		stopWorker = func(ctx context.Context) {
			cancelConsumer()
			select {
			case <-done:
			case <-ctx.Done():
			}
		}
	}

	exec := executor.New(plans, log,
		executor.NewQueuedStrategy(taskQueue, cfg.Generation.QueueCategory, config.GetDuration(cfg.Generation.InitialDelay)),
		executor.NewDeferredStrategy(scheduler, pipe, log),
		executor.NewSyncStrategy(pipe),
	)

	sessions := session.NewManager(
		session.NewRedisStore(rdb, time.Duration(cfg.Session.TTL)*time.Second),
		ai,
		log,
	)
	svc := service.NewPlanService(sessions, plans, exec, log)

	// --- HTTP: plan API, health and metrics ---
	mux := http.NewServeMux()
	svc.Routes(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := pg.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "postgres": err.Error()})
			return
		}
		if zeebeHealth != nil {
			if err := zeebeHealth(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "zeebe": err.Error()})
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping plan worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	stopWorker(shutdownCtx)
	if err := scheduler.Close(shutdownCtx); err != nil {
		zapLog.Warn("deferred tasks did not drain", zap.Error(err), zap.Int("pending", scheduler.Pending()))
	}

	zapLog.Info("Plan worker stopped")
}

// completionHooks builds the hooks enabled in cfg. A hook that cannot be
// set up is skipped; generation does not depend on it.
func completionHooks(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger) []pipeline.CompletionHook {
	var hooks []pipeline.CompletionHook

	if cfg.Search.Enabled {
		es, err := indexClient(ctx, cfg)
		if err != nil {
			zapLog.Warn("plan indexing disabled", zap.Error(err))
		} else {
			hooks = append(hooks, search.NewPlanIndexer(es, cfg.Search.Index, log))
		}
	}

	if cfg.Notifications.SNS.Enabled || cfg.Notifications.SES.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Warn("notifications disabled", zap.Error(err))
			return hooks
		}
		if cfg.Notifications.SNS.Enabled {
			hooks = append(hooks, notify.NewSNSPublisher(aws.NewSNSClient(awsCfg), cfg.Notifications.SNS.TopicARN, log))
		}
		if cfg.Notifications.SES.Enabled {
			hooks = append(hooks, notify.NewSESMailer(aws.NewSESClient(awsCfg), cfg.Notifications.SES.FromEmail, log))
		}
	}

	for _, h := range hooks {
		zapLog.Info("completion hook enabled", zap.String("hook", h.Name()))
	}
	return hooks
}

func indexClient(ctx context.Context, cfg *config.Config) (*elasticsearch.Client, error) {
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		return nil, err
	}
	if err := database.PingElasticsearch(ctx, es); err != nil {
		return nil, err
	}
	if err := database.EnsurePlanIndex(ctx, es, cfg.Search.Index); err != nil {
		return nil, err
	}
	return es, nil
}
