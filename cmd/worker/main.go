package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rss-newspaper/internal/adapters/fetcher"
	"rss-newspaper/internal/adapters/repo"
	"rss-newspaper/internal/adapters/scorer"
	"rss-newspaper/internal/domain"
	rediscache "rss-newspaper/internal/infra/cache"
	"rss-newspaper/internal/infra/config"
	"rss-newspaper/internal/infra/db"
	"rss-newspaper/internal/infra/log"
	"rss-newspaper/internal/infra/metrics"
	"rss-newspaper/internal/infra/openai"
	"rss-newspaper/internal/infra/queue"
	"rss-newspaper/internal/usecase/ingest"
	"rss-newspaper/internal/usecase/newspaper"
)

// Воркер разбирает очередь задач на сборку выпусков. Сборка
// идемпотентна: повторная задача по уже собранному выпуску
// завершится попаданием в хранилище.
func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv, "worker")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var rdb *redis.Client
	var cacheAdapter domain.Cache
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		cacheAdapter = rediscache.NewRedis(rdb)
	}

	var jobs domain.GenerationQueue
	switch cfg.Queue.Backend {
	case "amqp":
		amqpQueue, err := queue.NewAMQPGenerationQueue(cfg.Queue.AMQPURL, cfg.Queue.Key)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: нет подключения к AMQP")
		}
		defer amqpQueue.Close()
		jobs = amqpQueue
	default:
		if rdb == nil {
			logger.Fatal().Msg("worker: очередь redis требует REDIS_ADDR")
		}
		jobs = queue.NewRedisGenerationQueue(rdb, cfg.Queue.Key)
	}

	rng := domain.NewLockedRand(time.Now().UnixNano())
	fallback := scorer.NewFallback(rng)
	var batchScorer domain.BatchScorer = fallback
	if cfg.OpenAI.APIKey != "" {
		llm := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		batchScorer = scorer.NewLLM(llm, cfg.OpenAI.Model, cfg.OpenAI.Timeout, fallback, rng)
	}

	rss := fetcher.New(&http.Client{Timeout: 30 * time.Second})
	collector := ingest.NewService(rss, rng, logger.With().Str("component", "ingest").Logger(), cfg.Curation.MinArticles)
	service := newspaper.NewService(repoAdapter, batchScorer, collector, cacheAdapter,
		logger.With().Str("component", "newspaper").Logger(), newspaper.Limits{
			MinArticles:    cfg.Curation.MinArticles,
			MinViable:      cfg.Curation.MinViable,
			DefaultFeedCap: cfg.Curation.DefaultFeedCap,
			RetentionDays:  cfg.Retention.Days,
		})

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	logger.Info().Str("backend", cfg.Queue.Backend).Msg("worker: старт")
	for {
		job, err := jobs.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info().Msg("worker: остановка")
				return
			}
			logger.Error().Err(err).Msg("worker: очередь недоступна")
			time.Sleep(time.Second)
			continue
		}
		processJob(ctx, logger, service, job)
	}
}

func processJob(ctx context.Context, logger zerolog.Logger, service *newspaper.Service, job domain.GenerationJob) {
	// Ленты задачи считаются выбранными: штраф и квота резервных лент
	// применяются только к добавкам на чтении.
	feeds := make([]domain.FeedMetadata, 0, len(job.FeedURLs))
	for _, u := range job.FeedURLs {
		feeds = append(feeds, domain.FeedMetadata{URL: u})
	}
	_, err := service.GetOrCreate(ctx, newspaper.GenerateParams{
		NewspaperID: job.NewspaperID,
		Date:        job.Date,
		Feeds:       feeds,
		Theme:       job.Theme,
		Locale:      job.Locale,
		IsPublic:    job.IsPublic,
	})
	switch {
	case err == nil:
		logger.Info().Str("job", job.ID).Str("newspaper", job.NewspaperID).Str("date", job.Date).Msg("worker: выпуск собран")
	case errors.Is(err, domain.ErrNoArticles), errors.Is(err, domain.ErrNotEnoughArticles):
		// Прогрев по пустым лентам не повторяем, читатель получит ту же ошибку.
		logger.Warn().Err(err).Str("job", job.ID).Msg("worker: выпуск не собран, статей нет")
	default:
		logger.Error().Err(err).Str("job", job.ID).Msg("worker: сборка провалилась")
	}
}
