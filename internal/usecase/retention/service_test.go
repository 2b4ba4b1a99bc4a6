package retention

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rss-newspaper/internal/domain"
)

type expiredRepo struct {
	keys     map[domain.RecordCategory][]domain.RecordKey
	pageSize []int
	batches  [][]domain.RecordKey
	listErr  error
}

func (r *expiredRepo) GetRecord(context.Context, string, string) (domain.NewspaperRecord, error) {
	return domain.NewspaperRecord{}, domain.ErrRecordNotFound
}

func (r *expiredRepo) PutRecord(context.Context, domain.NewspaperRecord) error { return nil }

func (r *expiredRepo) IncrementViews(context.Context, string) (int64, error) { return 0, nil }

func (r *expiredRepo) ListExpiredKeys(_ context.Context, category domain.RecordCategory, _ string, limit int, afterSK string) ([]domain.RecordKey, string, error) {
	if r.listErr != nil {
		return nil, "", r.listErr
	}
	r.pageSize = append(r.pageSize, limit)
	pending := r.keys[category]
	// Курсор имитируется порядковым номером последнего отданного ключа.
	start := 0
	if afterSK != "" {
		start, _ = strconv.Atoi(afterSK)
	}
	end := start + limit
	if end > len(pending) {
		end = len(pending)
	}
	page := pending[start:end]
	next := ""
	if len(page) == limit && end < len(pending) {
		next = strconv.Itoa(end)
	}
	return page, next, nil
}

func (r *expiredRepo) DeleteRecords(_ context.Context, keys []domain.RecordKey) error {
	batch := make([]domain.RecordKey, len(keys))
	copy(batch, keys)
	r.batches = append(r.batches, batch)
	return nil
}

func expiredKeys(category domain.RecordCategory, n int) []domain.RecordKey {
	out := make([]domain.RecordKey, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.RecordKey{
			NewspaperID: fmt.Sprintf("np-%03d", i),
			Date:        "2040-06-01",
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NewspaperID < out[j].NewspaperID })
	return out
}

func newTestSweeper(repo *expiredRepo, cfg Config) *Sweeper {
	s := NewSweeper(repo, zerolog.Nop(), cfg)
	s.now = func() time.Time {
		return time.Date(2040, 6, 15, 10, 0, 0, 0, domain.JST)
	}
	return s
}

func TestCutoffDate(t *testing.T) {
	s := newTestSweeper(&expiredRepo{}, Config{Days: 7})
	if got := s.CutoffDate(); got != "2040-06-08" {
		t.Fatalf("ожидали отсечение 2040-06-08, получили %q", got)
	}
}

func TestSweepDeletesInBatches(t *testing.T) {
	repo := &expiredRepo{keys: map[domain.RecordCategory][]domain.RecordKey{
		domain.CategoryPublic:     expiredKeys(domain.CategoryPublic, 60),
		domain.CategoryHistorical: expiredKeys(domain.CategoryHistorical, 3),
	}}
	s := newTestSweeper(repo, Config{Days: 7, BatchSize: 25, PageSize: 100})

	deleted, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if deleted != 63 {
		t.Fatalf("ожидали 63 удалённых, получили %d", deleted)
	}
	for _, batch := range repo.batches {
		if len(batch) > 25 {
			t.Fatalf("пачка удаления превысила лимит: %d", len(batch))
		}
	}
	// 60 публичных: 25+25+10, исторические: 3.
	if len(repo.batches) != 4 {
		t.Fatalf("ожидали 4 пачки, получили %d", len(repo.batches))
	}
}

func TestSweepPaginates(t *testing.T) {
	repo := &expiredRepo{keys: map[domain.RecordCategory][]domain.RecordKey{
		domain.CategoryPublic: expiredKeys(domain.CategoryPublic, 7),
	}}
	s := newTestSweeper(repo, Config{Days: 7, BatchSize: 25, PageSize: 3})

	deleted, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if deleted != 7 {
		t.Fatalf("ожидали 7 удалённых, получили %d", deleted)
	}
}

func TestSweepEmptyIsIdempotent(t *testing.T) {
	repo := &expiredRepo{keys: map[domain.RecordCategory][]domain.RecordKey{}}
	s := newTestSweeper(repo, Config{})

	for i := 0; i < 2; i++ {
		deleted, err := s.Sweep(context.Background())
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		if deleted != 0 {
			t.Fatalf("по пустому хранилищу нечего удалять, получили %d", deleted)
		}
	}
	if len(repo.batches) != 0 {
		t.Fatalf("не ожидали вызовов удаления, получили %d", len(repo.batches))
	}
}

func TestSweepPropagatesListError(t *testing.T) {
	listErr := errors.New("хранилище недоступно")
	repo := &expiredRepo{listErr: listErr}
	s := newTestSweeper(repo, Config{})

	if _, err := s.Sweep(context.Background()); !errors.Is(err, listErr) {
		t.Fatalf("ожидали ошибку хранилища, получили %v", err)
	}
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	repo := &expiredRepo{keys: map[domain.RecordCategory][]domain.RecordKey{
		domain.CategoryPublic: expiredKeys(domain.CategoryPublic, 5),
	}}
	s := newTestSweeper(repo, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Sweep(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидали context.Canceled, получили %v", err)
	}
}
