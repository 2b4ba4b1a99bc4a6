package newspaper

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"rss-newspaper/internal/domain"
	"rss-newspaper/internal/infra/metrics"
	"rss-newspaper/internal/usecase/ingest"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// generateLockTTL — время жизни замка, сужающего гонку параллельных
// сборок одного выпуска.
const generateLockTTL = time.Minute

type collector interface {
	CollectLatest(ctx context.Context, feedURLs []string, theme string) (ingest.Result, error)
	CollectForDate(ctx context.Context, feedURLs []string, theme string, date time.Time) (ingest.Result, error)
}

// Limits задаёт пороги конвейера сборки.
type Limits struct {
	MinArticles    int
	MinViable      int
	DefaultFeedCap int
	RetentionDays  int
}

func (l Limits) withDefaults() Limits {
	if l.MinArticles <= 0 {
		l.MinArticles = 8
	}
	if l.MinViable <= 0 {
		l.MinViable = 3
	}
	if l.DefaultFeedCap <= 0 {
		l.DefaultFeedCap = 2
	}
	if l.RetentionDays <= 0 {
		l.RetentionDays = 7
	}
	return l
}

// Service реализует конвейер сборки выпусков: сбор статей, скоринг,
// квоты резервных лент, определение языков и датированное хранилище.
type Service struct {
	repo      domain.NewspaperRepo
	scorer    domain.BatchScorer
	collector collector
	cache     domain.Cache
	log       zerolog.Logger
	limits    Limits
	now       func() time.Time
}

// NewService создаёт сервис выпусков. cache может быть nil: замок
// параллельных сборок тогда не используется.
func NewService(repo domain.NewspaperRepo, batchScorer domain.BatchScorer, c collector, cache domain.Cache, logger zerolog.Logger, limits Limits) *Service {
	return &Service{
		repo:      repo,
		scorer:    batchScorer,
		collector: c,
		cache:     cache,
		log:       logger,
		limits:    limits.withDefaults(),
		now:       time.Now,
	}
}

// GenerateParams — параметры запроса датированного выпуска.
type GenerateParams struct {
	NewspaperID string
	Date        string
	Feeds       []domain.FeedMetadata
	Theme       string
	Locale      string
	IsPublic    bool
}

// ValidateDate проверяет дату до любого сетевого вызова: формат,
// не в будущем, не старше окна хранения. «Сегодня» считается в JST.
func (s *Service) ValidateDate(date string) error {
	if !dateRe.MatchString(date) {
		return domain.ErrInvalidDate
	}
	parsed, err := time.ParseInLocation(domain.DateLayout, date, domain.JST)
	if err != nil {
		return domain.ErrInvalidDate
	}
	now := s.now().In(domain.JST)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, domain.JST)
	if parsed.After(today) {
		return domain.ErrFutureDate
	}
	if parsed.Before(today.AddDate(0, 0, -s.limits.RetentionDays)) {
		return domain.ErrDateTooOld
	}
	return nil
}

// GetOrCreate возвращает выпуск за дату, при отсутствии — собирает и
// сохраняет его. Попадание в кэш идемпотентно: сохранённые статьи
// возвращаются как есть, без повторного скоринга. Каждое успешное
// чтение увеличивает счётчик просмотров газеты ровно один раз.
func (s *Service) GetOrCreate(ctx context.Context, p GenerateParams) (domain.NewspaperRecord, error) {
	if err := s.ValidateDate(p.Date); err != nil {
		metrics.IncNewspaperRequest("invalid_date")
		return domain.NewspaperRecord{}, err
	}

	rec, err := s.repo.GetRecord(ctx, p.NewspaperID, p.Date)
	if err == nil {
		metrics.IncNewspaperRequest("hit")
		return s.withView(ctx, rec), nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		metrics.IncNewspaperRequest("error")
		return domain.NewspaperRecord{}, err
	}

	gen := func() error {
		built, err := s.generate(ctx, p)
		if err != nil {
			return err
		}
		return s.repo.PutRecord(ctx, built)
	}

	if s.cache != nil {
		lockKey := fmt.Sprintf("newspaper:generate:%s:%s", p.NewspaperID, p.Date)
		if err := s.cache.Once(ctx, lockKey, generateLockTTL, gen); err != nil {
			metrics.IncNewspaperRequest(requestResult(err))
			return domain.NewspaperRecord{}, err
		}
		rec, err = s.repo.GetRecord(ctx, p.NewspaperID, p.Date)
		if err == nil {
			metrics.IncNewspaperRequest("generated")
			return s.withView(ctx, rec), nil
		}
		if !errors.Is(err, domain.ErrRecordNotFound) {
			metrics.IncNewspaperRequest("error")
			return domain.NewspaperRecord{}, err
		}
		// Замок держит другая сборка, записи ещё нет: собираем сами,
		// последняя запись победит — содержимое строится из одних лент.
	}

	if err := gen(); err != nil {
		metrics.IncNewspaperRequest(requestResult(err))
		return domain.NewspaperRecord{}, err
	}
	rec, err = s.repo.GetRecord(ctx, p.NewspaperID, p.Date)
	if err != nil {
		metrics.IncNewspaperRequest("error")
		return domain.NewspaperRecord{}, err
	}
	metrics.IncNewspaperRequest("generated")
	return s.withView(ctx, rec), nil
}

// BuildCurrent собирает свежий выпуск без привязки к дате и без
// сохранения: окна короче, диапазон считается от «сейчас».
func (s *Service) BuildCurrent(ctx context.Context, p GenerateParams) (domain.NewspaperRecord, error) {
	start := time.Now()
	res, err := s.collector.CollectLatest(ctx, feedURLs(p.Feeds), p.Theme)
	if err != nil {
		return domain.NewspaperRecord{}, fmt.Errorf("сбор статей: %w", err)
	}
	rec, err := s.assemble(ctx, p, res, s.now().In(domain.JST).Format(domain.DateLayout))
	if err != nil {
		return domain.NewspaperRecord{}, err
	}
	metrics.ObserveNewspaperBuild(start)
	return rec, nil
}

func (s *Service) generate(ctx context.Context, p GenerateParams) (domain.NewspaperRecord, error) {
	start := time.Now()
	date, err := time.ParseInLocation(domain.DateLayout, p.Date, domain.JST)
	if err != nil {
		return domain.NewspaperRecord{}, domain.ErrInvalidDate
	}
	res, err := s.collector.CollectForDate(ctx, feedURLs(p.Feeds), p.Theme, date)
	if err != nil {
		return domain.NewspaperRecord{}, fmt.Errorf("сбор статей: %w", err)
	}
	rec, err := s.assemble(ctx, p, res, p.Date)
	if err != nil {
		return domain.NewspaperRecord{}, err
	}
	metrics.ObserveNewspaperBuild(start)
	return rec, nil
}

// assemble прогоняет собранные статьи через скоринг, штраф и квоты
// резервных лент и определение языков.
func (s *Service) assemble(ctx context.Context, p GenerateParams, res ingest.Result, date string) (domain.NewspaperRecord, error) {
	if len(res.Articles) == 0 {
		return domain.NewspaperRecord{}, domain.ErrNoArticles
	}
	if len(res.Articles) < s.limits.MinViable {
		return domain.NewspaperRecord{}, domain.ErrNotEnoughArticles
	}

	articles := make([]domain.Article, len(res.Articles))
	copy(articles, res.Articles)

	scores, err := s.scorer.ScoreBatch(ctx, articles, p.Theme, p.Locale)
	if err != nil || len(scores) != len(articles) {
		// Скоринг никогда не фатален: нейтральные оценки и дальше.
		s.log.Warn().Err(err).Msg("скоринг недоступен, нейтральные оценки")
		scores = make([]int, len(articles))
		for i := range scores {
			scores[i] = 50
		}
	}
	for i := range articles {
		articles[i].Importance = scores[i]
	}

	defaults := defaultFeedSet(p.Feeds)
	ApplyDefaultFeedPenalty(articles, defaults)
	articles = LimitDefaultFeeds(articles, defaults, s.limits.DefaultFeedCap, s.limits.MinArticles)

	return domain.NewspaperRecord{
		NewspaperID: p.NewspaperID,
		Date:        date,
		FeedURLs:    feedURLs(p.Feeds),
		Articles:    articles,
		Languages:   DetectLanguages(articles, res.FeedLangs),
		IsPublic:    p.IsPublic,
		Locale:      p.Locale,
		CreatedAt:   s.now().UTC(),
	}, nil
}

func (s *Service) withView(ctx context.Context, rec domain.NewspaperRecord) domain.NewspaperRecord {
	views, err := s.repo.IncrementViews(ctx, rec.NewspaperID)
	if err != nil {
		// Потерянный инкремент просмотров не стоит отказа в выпуске.
		s.log.Warn().Err(err).Str("newspaper", rec.NewspaperID).Msg("счётчик просмотров не увеличен")
		return rec
	}
	rec.ViewCount = views
	return rec
}

func requestResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoArticles):
		return "no_articles"
	case errors.Is(err, domain.ErrNotEnoughArticles):
		return "not_enough_articles"
	default:
		return "error"
	}
}

func feedURLs(feeds []domain.FeedMetadata) []string {
	out := make([]string, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, f.URL)
	}
	return out
}

func defaultFeedSet(feeds []domain.FeedMetadata) map[string]bool {
	out := make(map[string]bool)
	for _, f := range feeds {
		if f.IsDefault {
			out[f.URL] = true
		}
	}
	return out
}
