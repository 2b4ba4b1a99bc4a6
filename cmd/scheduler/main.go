package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rss-newspaper/internal/adapters/repo"
	"rss-newspaper/internal/domain"
	"rss-newspaper/internal/infra/config"
	"rss-newspaper/internal/infra/db"
	"rss-newspaper/internal/infra/log"
	"rss-newspaper/internal/infra/metrics"
	"rss-newspaper/internal/infra/queue"
	"rss-newspaper/internal/usecase/retention"
)

// Планировщик тикает раз в минуту: в час чистки запускает удаление
// устаревших выпусков, в час прогрева ставит задачи на сборку
// сегодняшних публичных выпусков. Оба действия выполняются не чаще
// раза в сутки по JST.
func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv, "scheduler")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var jobs domain.GenerationQueue
	switch cfg.Queue.Backend {
	case "amqp":
		amqpQueue, err := queue.NewAMQPGenerationQueue(cfg.Queue.AMQPURL, cfg.Queue.Key)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: нет подключения к AMQP")
		}
		defer amqpQueue.Close()
		jobs = amqpQueue
	default:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		jobs = queue.NewRedisGenerationQueue(rdb, cfg.Queue.Key)
	}

	sweeper := retention.NewSweeper(repoAdapter, logger.With().Str("component", "retention").Logger(), retention.Config{
		Days:      cfg.Retention.Days,
		BatchSize: cfg.Retention.BatchSize,
		PageSize:  cfg.Retention.PageSize,
	})

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	var lastSweep, lastWarmup string
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановка")
			return
		case <-ticker.C:
		}

		now := time.Now().In(domain.JST)
		today := now.Format(domain.DateLayout)

		if now.Hour() == cfg.Retention.SweepHour && lastSweep != today {
			deleted, err := sweeper.Sweep(ctx)
			if err != nil {
				logger.Error().Err(err).Int("deleted", deleted).Msg("scheduler: чистка прервана")
				continue
			}
			lastSweep = today
		}

		if now.Hour() == cfg.Warmup.Hour && lastWarmup != today {
			if warmupNewspapers(ctx, logger, jobs, cfg, today) {
				lastWarmup = today
			}
		}
	}
}

// warmupNewspapers ставит задачи прогрева сегодняшних публичных
// выпусков. Возвращает false, если хоть одна задача не встала:
// следующий тик попробует снова, сборка идемпотентна.
func warmupNewspapers(ctx context.Context, logger zerolog.Logger, jobs domain.GenerationQueue, cfg config.AppConfig, date string) bool {
	ok := true
	for _, id := range cfg.Warmup.Newspapers {
		job := domain.GenerationJob{
			ID:          uuid.NewString(),
			NewspaperID: id,
			Date:        date,
			FeedURLs:    cfg.Feeds.Defaults,
			IsPublic:    true,
			RequestedAt: time.Now().UTC(),
			Cause:       domain.CauseWarmup,
		}
		if err := jobs.Enqueue(ctx, job); err != nil {
			logger.Error().Err(err).Str("newspaper", id).Msg("scheduler: задача прогрева не встала в очередь")
			ok = false
			continue
		}
		logger.Info().Str("newspaper", id).Str("date", date).Str("job", job.ID).Msg("scheduler: прогрев поставлен")
	}
	return ok
}
