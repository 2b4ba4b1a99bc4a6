package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"rss-newspaper/internal/adapters/fetcher"
	"rss-newspaper/internal/adapters/repo"
	"rss-newspaper/internal/adapters/scorer"
	"rss-newspaper/internal/domain"
	rediscache "rss-newspaper/internal/infra/cache"
	"rss-newspaper/internal/infra/config"
	"rss-newspaper/internal/infra/db"
	httpinfra "rss-newspaper/internal/infra/http"
	"rss-newspaper/internal/infra/log"
	"rss-newspaper/internal/infra/metrics"
	"rss-newspaper/internal/infra/openai"
	"rss-newspaper/internal/infra/queue"
	"rss-newspaper/internal/usecase/ingest"
	"rss-newspaper/internal/usecase/newspaper"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv, "api")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
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
			logger.Fatal().Err(err).Msg("api: нет подключения к AMQP")
		}
		defer amqpQueue.Close()
		jobs = amqpQueue
	default:
		if rdb == nil {
			logger.Fatal().Msg("api: очередь redis требует REDIS_ADDR")
		}
		jobs = queue.NewRedisGenerationQueue(rdb, cfg.Queue.Key)
	}

	rng := domain.NewLockedRand(time.Now().UnixNano())
	fallback := scorer.NewFallback(rng)
	var batchScorer domain.BatchScorer = fallback
	if cfg.OpenAI.APIKey != "" {
		llm := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		batchScorer = scorer.NewLLM(llm, cfg.OpenAI.Model, cfg.OpenAI.Timeout, fallback, rng)
	} else {
		logger.Warn().Msg("api: OPENAI_API_KEY не задан, скоринг только эвристический")
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

	srv := httpinfra.NewServer(logger)
	r := srv.Router

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Get("/api/v1/newspapers/{newspaperID}/dates/{date}", func(w http.ResponseWriter, r *http.Request) {
		feeds := resolveFeeds(r, cfg)
		rec, err := service.GetOrCreate(r.Context(), newspaper.GenerateParams{
			NewspaperID: chi.URLParam(r, "newspaperID"),
			Date:        chi.URLParam(r, "date"),
			Feeds:       feeds,
			Theme:       r.URL.Query().Get("theme"),
			Locale:      r.URL.Query().Get("locale"),
			IsPublic:    r.URL.Query().Get("public") == "true",
		})
		if err != nil {
			logger.Warn().Err(err).Str("date", chi.URLParam(r, "date")).Msg("api: выпуск не получен")
			writeDomainError(w, err)
			return
		}
		writeJSON(w, rec)
	})

	r.Get("/api/v1/newspapers/{newspaperID}/current", func(w http.ResponseWriter, r *http.Request) {
		feeds := resolveFeeds(r, cfg)
		rec, err := service.BuildCurrent(r.Context(), newspaper.GenerateParams{
			NewspaperID: chi.URLParam(r, "newspaperID"),
			Feeds:       feeds,
			Theme:       r.URL.Query().Get("theme"),
			Locale:      r.URL.Query().Get("locale"),
		})
		if err != nil {
			logger.Warn().Err(err).Msg("api: свежий выпуск не собран")
			writeDomainError(w, err)
			return
		}
		writeJSON(w, rec)
	})

	r.Post("/api/v1/newspapers/{newspaperID}/warmup", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req warmupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "некорректное тело запроса")
			return
		}
		date := req.Date
		if date == "" {
			date = time.Now().In(domain.JST).Format(domain.DateLayout)
		}
		if err := service.ValidateDate(date); err != nil {
			writeDomainError(w, err)
			return
		}
		job := domain.GenerationJob{
			ID:          uuid.NewString(),
			NewspaperID: chi.URLParam(r, "newspaperID"),
			Date:        date,
			FeedURLs:    req.FeedURLs,
			Theme:       req.Theme,
			Locale:      req.Locale,
			IsPublic:    req.IsPublic,
			RequestedAt: time.Now().UTC(),
			Cause:       domain.CauseManual,
		}
		if err := jobs.Enqueue(r.Context(), job); err != nil {
			logger.Error().Err(err).Msg("api: задача не поставлена в очередь")
			writeError(w, http.StatusInternalServerError, "QUEUE_ERROR", "не удалось поставить задачу")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"jobId": job.ID})
	})

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	go func() {
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type warmupRequest struct {
	Date     string   `json:"date"`
	FeedURLs []string `json:"feedUrls"`
	Theme    string   `json:"theme"`
	Locale   string   `json:"locale"`
	IsPublic bool     `json:"isPublic"`
}

// resolveFeeds разбирает ленты из query и добивает их резервными,
// если пользовательских меньше минимума.
func resolveFeeds(r *http.Request, cfg config.AppConfig) []domain.FeedMetadata {
	var feeds []domain.FeedMetadata
	seen := map[string]bool{}
	for _, raw := range r.URL.Query()["feeds"] {
		for _, u := range strings.Split(raw, ",") {
			u = strings.TrimSpace(u)
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			feeds = append(feeds, domain.FeedMetadata{URL: u})
		}
	}
	if len(feeds) >= cfg.Feeds.MinUserFeeds {
		return feeds
	}
	for _, u := range cfg.Feeds.Defaults {
		if seen[u] {
			continue
		}
		seen[u] = true
		feeds = append(feeds, domain.FeedMetadata{URL: u, IsDefault: true})
	}
	return feeds
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "дата должна быть в формате YYYY-MM-DD")
	case errors.Is(err, domain.ErrFutureDate):
		writeError(w, http.StatusBadRequest, "FUTURE_DATE", "дата в будущем")
	case errors.Is(err, domain.ErrDateTooOld):
		writeError(w, http.StatusBadRequest, "DATE_TOO_OLD", "дата за пределами окна хранения")
	case errors.Is(err, domain.ErrNoArticles):
		writeError(w, http.StatusUnprocessableEntity, "NO_ARTICLES", "за эту дату статей не нашлось")
	case errors.Is(err, domain.ErrNotEnoughArticles):
		writeError(w, http.StatusUnprocessableEntity, "NOT_ENOUGH_ARTICLES", "статей недостаточно для выпуска")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "внутренняя ошибка")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "error": msg})
}
