// Package app builds the shared dependency graph used by every entrypoint:
// the database pool, the repositories, the upstream clients and the
// scheduler services on top of them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"autopost/internal/config"
	"autopost/internal/content"
	"autopost/internal/db"
	"autopost/internal/external"
	"autopost/internal/metrics"
	"autopost/internal/queue"
	"autopost/internal/schedule"
	"autopost/internal/scheduler"
	"autopost/internal/security"
)

// upstreamTimeout bounds a single call to the generation or publishing API.
const upstreamTimeout = 30 * time.Second

// App holds the wired components. Close releases the pool.
type App struct {
	Config *config.Config
	Pool   *pgxpool.Pool

	Credentials *db.CredentialRepository
	JobLocks    *db.JobLockRepository
	JobHistory  *db.JobHistoryRepository

	Service   *scheduler.Service
	Processor *scheduler.BatchProcessor
	Metrics   *metrics.BatchRecorder
}

// New connects to the database and AWS and wires the scheduler services.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	cipher, err := security.NewCredentialCipher(cfg.Security.TokenEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating credential cipher: %w", err)
	}

	schedules := db.NewScheduledPostRepository(pool)
	users := db.NewUserRepository(pool)
	credentials := db.NewCredentialRepository(pool)
	history := db.NewContentRepository(pool)

	httpClient := &http.Client{Timeout: upstreamTimeout}
	gemini := external.NewGeminiClient(httpClient, external.GeminiConfig{
		APIKey:         cfg.Gemini.APIKey,
		BaseURL:        cfg.Gemini.BaseURL,
		TextModel:      cfg.Gemini.TextModel,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
		Logger:         logger,
	})
	threads := external.NewThreadsClient(httpClient, external.ThreadsConfig{
		BaseURL:    cfg.Threads.BaseURL,
		APIVersion: cfg.Threads.APIVersion,
		Logger:     logger,
	})

	generator := content.NewUniqueGenerator(content.GeneratorConfig{
		Generator: gemini,
		Deduplicator: content.NewDeduplicator(content.DeduplicatorConfig{
			Embedder:  gemini,
			Threshold: cfg.Scheduler.SimilarityThreshold,
			Logger:    logger,
		}),
		History:       history,
		HistoryWindow: cfg.Scheduler.HistoryWindow,
		MaxAttempts:   cfg.Scheduler.MaxAttempts,
		Logger:        logger,
	})

	resolver := security.NewCredentialStore(credentials, cipher, logger)
	calc := schedule.NewCalculator(schedule.NewZonedClock())

	var events scheduler.EventPublisher
	if cfg.AWS.EventQueueURL != "" {
		sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		events = queue.NewEventPublisher(sqsClient, cfg.AWS, logger)
	}

	cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	return &App{
		Config:      cfg,
		Pool:        pool,
		Credentials: credentials,
		JobLocks:    db.NewJobLockRepository(pool),
		JobHistory:  db.NewJobHistoryRepository(pool),
		Service: scheduler.NewService(scheduler.ServiceConfig{
			Schedules:    schedules,
			Prompts:      users,
			Credentials:  resolver,
			Content:      generator,
			Publisher:    threads,
			Calculator:   calc,
			Accounts:     db.NewAccountRepository(pool),
			MaxAttempts:  cfg.Scheduler.MaxAttempts,
			PublishDelay: cfg.Scheduler.PublishDelay,
			Logger:       logger,
		}),
		Processor: scheduler.NewBatchProcessor(scheduler.ProcessorConfig{
			Schedules:     schedules,
			Prompts:       users,
			Credentials:   resolver,
			Content:       generator,
			Publisher:     threads,
			Calculator:    calc,
			Events:        events,
			PageSize:      cfg.Scheduler.PageSize,
			MaxAttempts:   cfg.Scheduler.MaxAttempts,
			Concurrency:   cfg.Scheduler.Concurrency,
			PublishDelay:  cfg.Scheduler.PublishDelay,
			RecordTimeout: cfg.Scheduler.RecordTimeout,
			LeaseTTL:      cfg.Scheduler.LeaseTTL,
			Logger:        logger,
		}),
		Metrics: metrics.NewBatchRecorder(cwClient, logger),
	}, nil
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}
