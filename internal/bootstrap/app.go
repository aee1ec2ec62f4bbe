// Package bootstrap assembles the application: configuration,
// datastores, the embedding client, the worker pool, and the services
// the HTTP layer serves.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docpipe/internal/ai"
	"docpipe/internal/app"
	"docpipe/internal/cache"
	"docpipe/internal/chunk"
	"docpipe/internal/config"
	"docpipe/internal/ingest"
	"docpipe/internal/model"
	"docpipe/internal/parse"
	"docpipe/internal/pkg/tokens"
	mysqlClient "docpipe/internal/platform/mysql"
	rabbitmqClient "docpipe/internal/platform/rabbitmq"
	redisClient "docpipe/internal/platform/redis"
	"docpipe/internal/retrieval"
	"docpipe/internal/store"
	mysqlstore "docpipe/internal/store/mysql"
)

type App struct {
	Config *config.Config
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection
	Pool   *ingest.Pool

	IngestService    *app.IngestService
	StatusService    *app.StatusService
	RetrievalService *app.RetrievalService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.User{}, &model.Document{}, &model.Chunk{}, &model.ProcessingJob{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	docStore := mysqlstore.NewDocumentStore(mysqlDB)
	chunkStore := mysqlstore.NewChunkStore(mysqlDB)
	jobStore := mysqlstore.NewJobStore(mysqlDB, store.BackoffPolicy{
		BaseDelay: cfg.Pipeline.BackoffBase(),
		MaxDelay:  cfg.Pipeline.BackoffMax(),
	}, cfg.Pipeline.VisibilityTimeout(), cfg.Pipeline.MaxRetries)

	embedder := ai.NewClient(ai.EmbeddingConfig{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Retrieval.EmbeddingDimension,
	})

	counter := tokens.NewCounter(cfg.Retrieval.TokenEncoding)

	parsers := parse.NewRegistry()
	chunker := chunk.NewChunker(0, 0, counter)
	events := rabbitmqClient.NewEventPublisher(mqConn, cfg.RabbitMQ.DocumentEventQueue)

	stages := ingest.NewStages(docStore, jobStore, chunkStore, parsers, chunker, embedder, events, logger)
	pool, err := ingest.NewPool(ingest.PoolConfig{
		Size:         cfg.Pipeline.Workers,
		PollInterval: cfg.Pipeline.PollInterval(),
		StageTimeout: cfg.Pipeline.StageTimeout(),
	}, stages, jobStore, docStore, logger)
	if err != nil {
		return nil, fmt.Errorf("build worker pool failed: %w", err)
	}
	if err := pool.Start(ctx); err != nil {
		return nil, fmt.Errorf("start worker pool failed: %w", err)
	}

	engine, err := retrieval.NewEngine(chunkStore, cfg.Retrieval.EmbeddingDimension)
	if err != nil {
		return nil, fmt.Errorf("build retrieval engine failed: %w", err)
	}

	statusCache := cache.NewStatusCache(redisCli, cfg.StatusTTL())

	return &App{
		Config: cfg,
		MySQL:  mysqlDB,
		Redis:  redisCli,
		MQConn: mqConn,
		Pool:   pool,

		IngestService: app.NewIngestService(docStore, jobStore, parsers, statusCache),
		StatusService: app.NewStatusService(docStore, jobStore, statusCache),
		RetrievalService: app.NewRetrievalService(engine, embedder, app.RetrievalDefaults{
			Threshold:   float32(cfg.Retrieval.SimilarityThreshold),
			MaxChunks:   cfg.Retrieval.DefaultMaxChunks,
			TokenBudget: cfg.Retrieval.DefaultTokenBudget,
		}),

		StartedAt: time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
