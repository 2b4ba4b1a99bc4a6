package newspaper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"rss-newspaper/internal/domain"
	"rss-newspaper/internal/usecase/ingest"
)

type memRepo struct {
	records map[string]domain.NewspaperRecord
	views   map[string]int64
	puts    int
}

func newMemRepo() *memRepo {
	return &memRepo{
		records: make(map[string]domain.NewspaperRecord),
		views:   make(map[string]int64),
	}
}

func recKey(id, date string) string { return id + "#" + date }

func (r *memRepo) GetRecord(_ context.Context, id, date string) (domain.NewspaperRecord, error) {
	rec, ok := r.records[recKey(id, date)]
	if !ok {
		return domain.NewspaperRecord{}, domain.ErrRecordNotFound
	}
	rec.ViewCount = r.views[id]
	return rec, nil
}

func (r *memRepo) PutRecord(_ context.Context, rec domain.NewspaperRecord) error {
	r.puts++
	r.records[recKey(rec.NewspaperID, rec.Date)] = rec
	return nil
}

func (r *memRepo) IncrementViews(_ context.Context, id string) (int64, error) {
	r.views[id]++
	return r.views[id], nil
}

func (r *memRepo) ListExpiredKeys(context.Context, domain.RecordCategory, string, int, string) ([]domain.RecordKey, string, error) {
	return nil, "", nil
}

func (r *memRepo) DeleteRecords(context.Context, []domain.RecordKey) error { return nil }

type stubScorer struct {
	score int
	calls int
	err   error
}

func (s *stubScorer) ScoreBatch(_ context.Context, articles []domain.Article, _, _ string) ([]int, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	scores := make([]int, len(articles))
	for i := range scores {
		scores[i] = s.score
	}
	return scores, nil
}

type stubCollector struct {
	result ingest.Result
	calls  int
}

func (c *stubCollector) CollectLatest(context.Context, []string, string) (ingest.Result, error) {
	c.calls++
	return c.result, nil
}

func (c *stubCollector) CollectForDate(context.Context, []string, string, time.Time) (ingest.Result, error) {
	c.calls++
	return c.result, nil
}

func collectedArticles(n int, feed string) []domain.Article {
	out := make([]domain.Article, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Article{
			Title:      fmt.Sprintf("статья %d", i),
			Link:       fmt.Sprintf("%s/%d", feed, i),
			PubDate:    time.Now().Add(-time.Duration(i) * time.Minute),
			FeedSource: feed,
		})
	}
	return out
}

func fixedNow() time.Time {
	return time.Date(2040, 6, 15, 10, 0, 0, 0, domain.JST)
}

func newTestService(repo *memRepo, sc *stubScorer, col *stubCollector) *Service {
	s := NewService(repo, sc, col, nil, zerolog.Nop(), Limits{})
	s.now = fixedNow
	return s
}

func TestValidateDate(t *testing.T) {
	s := newTestService(newMemRepo(), &stubScorer{score: 50}, &stubCollector{})

	tests := []struct {
		date string
		want error
	}{
		{date: "2999-01-01", want: domain.ErrFutureDate},
		{date: "2040-05-16", want: domain.ErrDateTooOld}, // 30 дней назад
		{date: "2040-06-15", want: nil},                  // сегодня
		{date: "2040-06-08", want: nil},                  // граница окна хранения
		{date: "2040-06-07", want: domain.ErrDateTooOld},
		{date: "не дата", want: domain.ErrInvalidDate},
		{date: "2040-13-40", want: domain.ErrInvalidDate},
		{date: "2040/06/15", want: domain.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			err := s.ValidateDate(tt.date)
			if !errors.Is(err, tt.want) {
				t.Fatalf("дата %q: ожидали %v, получили %v", tt.date, tt.want, err)
			}
		})
	}
}

func TestGetOrCreateRoundTrip(t *testing.T) {
	repo := newMemRepo()
	sc := &stubScorer{score: 60}
	col := &stubCollector{result: ingest.Result{Articles: collectedArticles(10, "https://user/rss")}}
	s := newTestService(repo, sc, col)

	params := GenerateParams{
		NewspaperID: "np-1",
		Date:        "2040-06-14",
		Feeds:       []domain.FeedMetadata{{URL: "https://user/rss"}},
		Theme:       "tech",
		Locale:      "en",
	}

	first, err := s.GetOrCreate(context.Background(), params)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if sc.calls != 1 {
		t.Fatalf("ожидали один вызов скоринга, получили %d", sc.calls)
	}
	if first.ViewCount != 1 {
		t.Fatalf("ожидали 1 просмотр, получили %d", first.ViewCount)
	}
	for _, a := range first.Articles {
		if a.Importance != 60 {
			t.Fatalf("ожидали оценку 60, получили %d", a.Importance)
		}
	}

	second, err := s.GetOrCreate(context.Background(), params)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// Попадание в кэш: ни повторного сбора, ни повторного скоринга.
	if sc.calls != 1 || col.calls != 1 {
		t.Fatalf("кэш-хит не должен пересобирать выпуск: скоринг %d, сбор %d", sc.calls, col.calls)
	}
	if second.ViewCount != 2 {
		t.Fatalf("ожидали 2 просмотра, получили %d", second.ViewCount)
	}
	if diff := cmp.Diff(first.Articles, second.Articles); diff != "" {
		t.Fatalf("статьи должны совпадать побайтово (-first +second):\n%s", diff)
	}
}

func TestGetOrCreateInsufficientArticles(t *testing.T) {
	repo := newMemRepo()
	col := &stubCollector{result: ingest.Result{Articles: collectedArticles(2, "https://user/rss")}}
	s := newTestService(repo, &stubScorer{score: 50}, col)

	_, err := s.GetOrCreate(context.Background(), GenerateParams{
		NewspaperID: "np-1",
		Date:        "2040-06-14",
		Feeds:       []domain.FeedMetadata{{URL: "https://user/rss"}},
	})
	if !errors.Is(err, domain.ErrNotEnoughArticles) {
		t.Fatalf("ожидали ErrNotEnoughArticles, получили %v", err)
	}
	if repo.puts != 0 {
		t.Fatal("неполный выпуск не должен сохраняться")
	}
}

func TestGetOrCreateNoArticles(t *testing.T) {
	repo := newMemRepo()
	s := newTestService(repo, &stubScorer{score: 50}, &stubCollector{})

	_, err := s.GetOrCreate(context.Background(), GenerateParams{
		NewspaperID: "np-1",
		Date:        "2040-06-14",
	})
	if !errors.Is(err, domain.ErrNoArticles) {
		t.Fatalf("ожидали ErrNoArticles, получили %v", err)
	}
	if repo.puts != 0 {
		t.Fatal("пустой выпуск не должен сохраняться")
	}
}

func TestGetOrCreateAppliesPenaltyAndQuota(t *testing.T) {
	repo := newMemRepo()
	sc := &stubScorer{score: 60}
	var pool []domain.Article
	pool = append(pool, collectedArticles(8, "https://user/rss")...)
	pool = append(pool, collectedArticles(5, "https://fallback/rss")...)
	col := &stubCollector{result: ingest.Result{Articles: pool}}
	s := newTestService(repo, sc, col)

	rec, err := s.GetOrCreate(context.Background(), GenerateParams{
		NewspaperID: "np-1",
		Date:        "2040-06-14",
		Feeds: []domain.FeedMetadata{
			{URL: "https://user/rss"},
			{URL: "https://fallback/rss", IsDefault: true},
		},
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	fallbackCount := 0
	for _, a := range rec.Articles {
		switch a.FeedSource {
		case "https://fallback/rss":
			fallbackCount++
			if a.Importance != 30 {
				t.Fatalf("ожидали 60-30=30 для резервной ленты, получили %d", a.Importance)
			}
		default:
			if a.Importance != 60 {
				t.Fatalf("ожидали 60 для пользовательской ленты, получили %d", a.Importance)
			}
		}
	}
	if fallbackCount != 2 {
		t.Fatalf("ожидали квоту 2 статьи резервной ленты, получили %d", fallbackCount)
	}
}

func TestGetOrCreateScorerErrorIsAbsorbed(t *testing.T) {
	repo := newMemRepo()
	sc := &stubScorer{err: errors.New("провайдер недоступен")}
	col := &stubCollector{result: ingest.Result{Articles: collectedArticles(10, "https://user/rss")}}
	s := newTestService(repo, sc, col)

	rec, err := s.GetOrCreate(context.Background(), GenerateParams{
		NewspaperID: "np-1",
		Date:        "2040-06-14",
		Feeds:       []domain.FeedMetadata{{URL: "https://user/rss"}},
	})
	if err != nil {
		t.Fatalf("сбой скоринга не должен ронять выпуск: %v", err)
	}
	for _, a := range rec.Articles {
		if a.Importance != 50 {
			t.Fatalf("ожидали нейтральные 50, получили %d", a.Importance)
		}
	}
}

func TestBuildCurrentDoesNotPersist(t *testing.T) {
	repo := newMemRepo()
	col := &stubCollector{result: ingest.Result{Articles: collectedArticles(10, "https://user/rss")}}
	s := newTestService(repo, &stubScorer{score: 40}, col)

	rec, err := s.BuildCurrent(context.Background(), GenerateParams{
		NewspaperID: "np-1",
		Feeds:       []domain.FeedMetadata{{URL: "https://user/rss"}},
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if rec.Date != "2040-06-15" {
		t.Fatalf("ожидали сегодняшнюю дату выпуска, получили %q", rec.Date)
	}
	if repo.puts != 0 {
		t.Fatal("текущий выпуск не сохраняется в датированное хранилище")
	}
}
