package ingest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rss-newspaper/internal/domain"
	"rss-newspaper/internal/infra/metrics"
)

const (
	// TargetMin и TargetMax задают диапазон целевого числа статей
	// выпуска. Цель выбирается случайно для визуального разнообразия
	// повторных выпусков одной темы.
	TargetMin = 8
	TargetMax = 15
)

// Окна ретроспективы пробуются по порядку, пока не наберётся минимум.
// Явный список вместо вложенных условий: политика остаётся данными.
var (
	latestWindows     = []int{3, 7}
	historicalWindows = []int{7, 14}
)

// historicalExtensionDays — насколько расширяется диапазон дат назад,
// если исторический выпуск не набрал минимум после самого широкого окна.
const historicalExtensionDays = 7

// Service собирает объединённый набор статей из набора лент.
type Service struct {
	fetcher     domain.FeedFetcher
	rng         domain.Rand
	log         zerolog.Logger
	minArticles int
	now         func() time.Time
}

// Result — результат сбора: статьи и языки лент, отдавших их.
type Result struct {
	Articles  []domain.Article
	FeedLangs map[string]string
}

// NewService создаёт сборщик статей.
func NewService(fetcher domain.FeedFetcher, rng domain.Rand, logger zerolog.Logger, minArticles int) *Service {
	if minArticles <= 0 {
		minArticles = TargetMin
	}
	return &Service{
		fetcher:     fetcher,
		rng:         rng,
		log:         logger,
		minArticles: minArticles,
		now:         time.Now,
	}
}

// CollectLatest собирает свежие статьи для текущего выпуска.
// Тема пока только логируется: фильтром она на этом этапе не является.
func (s *Service) CollectLatest(ctx context.Context, feedURLs []string, theme string) (Result, error) {
	s.log.Debug().Str("theme", theme).Int("feeds", len(feedURLs)).Msg("сбор свежих статей")

	var (
		articles []domain.Article
		langs    map[string]string
	)
	for _, window := range latestWindows {
		articles, langs = s.fetchAll(ctx, feedURLs, window)
		if len(articles) >= s.minArticles {
			break
		}
	}
	// Мягкий минимум: выпуск собирается из того, что есть.
	return Result{Articles: s.selectArticles(articles), FeedLangs: langs}, nil
}

// CollectForDate собирает статьи для датированного выпуска: окна шире,
// а отбор идёт по явному диапазону [начало дня, конец дня или сейчас]
// в опорном часовом поясе, не по «последним N дням».
func (s *Service) CollectForDate(ctx context.Context, feedURLs []string, theme string, date time.Time) (Result, error) {
	s.log.Debug().Str("theme", theme).Str("date", date.Format(domain.DateLayout)).Msg("сбор статей за дату")

	now := s.now()
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, domain.JST)
	dayEnd := dayStart.AddDate(0, 0, 1).Add(-time.Nanosecond)
	if dayEnd.After(now) {
		dayEnd = now
	}

	var (
		articles []domain.Article
		langs    map[string]string
		filtered []domain.Article
	)
	for _, window := range historicalWindows {
		articles, langs = s.fetchAll(ctx, feedURLs, window)
		filtered = filterRange(articles, dayStart, dayEnd)
		if len(filtered) >= s.minArticles {
			break
		}
	}
	if len(filtered) < s.minArticles {
		// Последняя попытка: диапазон расширяется назад от целевой даты.
		extendedStart := dayStart.AddDate(0, 0, -historicalExtensionDays)
		filtered = filterRange(articles, extendedStart, dayEnd)
	}
	return Result{Articles: s.selectArticles(filtered), FeedLangs: langs}, nil
}

// fetchAll выгружает ленты параллельно. Сбой одной ленты логируется и
// пропускается: частичный результат лучше пустого.
func (s *Service) fetchAll(ctx context.Context, feedURLs []string, lookbackDays int) ([]domain.Article, map[string]string) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		articles []domain.Article
		langs    = make(map[string]string, len(feedURLs))
	)
	for _, url := range feedURLs {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			res, err := s.fetcher.Fetch(ctx, url, lookbackDays)
			if err != nil {
				metrics.IncFeedFetchError(url)
				s.log.Warn().Err(err).Str("feed", url).Msg("лента пропущена")
				return
			}
			mu.Lock()
			articles = append(articles, res.Articles...)
			if res.Language != "" {
				langs[url] = res.Language
			}
			mu.Unlock()
		}(url)
	}
	wg.Wait()
	return articles, langs
}

// selectArticles выбирает целевое число свежайших статей и перемешивает
// их внутри групп «с картинкой» и «без», картинки первыми: ведущая
// статья выпуска с большой вероятностью получает иллюстрацию.
func (s *Service) selectArticles(articles []domain.Article) []domain.Article {
	if len(articles) == 0 {
		return nil
	}

	sorted := make([]domain.Article, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PubDate.After(sorted[j].PubDate)
	})

	target := TargetMin + s.rng.Intn(TargetMax-TargetMin+1)
	if len(sorted) > target {
		sorted = sorted[:target]
	}

	var withImage, withoutImage []domain.Article
	for _, a := range sorted {
		if a.HasImage() {
			withImage = append(withImage, a)
		} else {
			withoutImage = append(withoutImage, a)
		}
	}
	s.shuffle(withImage)
	s.shuffle(withoutImage)
	return append(withImage, withoutImage...)
}

// shuffle — перемешивание Фишера–Йетса на инъецированном источнике.
func (s *Service) shuffle(articles []domain.Article) {
	for i := len(articles) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		articles[i], articles[j] = articles[j], articles[i]
	}
}

func filterRange(articles []domain.Article, start, end time.Time) []domain.Article {
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if a.PubDate.Before(start) || a.PubDate.After(end) {
			continue
		}
		out = append(out, a)
	}
	return out
}
