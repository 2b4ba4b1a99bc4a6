package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rss-newspaper/internal/domain"
	"rss-newspaper/internal/infra/metrics"
)

// Config задаёт параметры чистки устаревших выпусков.
type Config struct {
	// Days — глубина окна хранения в днях от «сегодня» в JST.
	Days int
	// BatchSize — максимум ключей в одной пачке удаления.
	BatchSize int
	// PageSize — размер страницы постраничного обхода.
	PageSize int
}

func (c Config) withDefaults() Config {
	if c.Days <= 0 {
		c.Days = 7
	}
	if c.BatchSize <= 0 || c.BatchSize > 25 {
		c.BatchSize = 25
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	return c
}

// Sweeper удаляет выпуски старше окна хранения. Чистка идемпотентна:
// повторный запуск по уже вычищенному диапазону ничего не находит,
// а прерванный проход безопасно продолжается со следующего запуска.
type Sweeper struct {
	repo domain.NewspaperRepo
	log  zerolog.Logger
	cfg  Config
	now  func() time.Time
}

// NewSweeper создаёт чистильщик с порогами из cfg.
func NewSweeper(repo domain.NewspaperRepo, logger zerolog.Logger, cfg Config) *Sweeper {
	return &Sweeper{
		repo: repo,
		log:  logger,
		cfg:  cfg.withDefaults(),
		now:  time.Now,
	}
}

// CutoffDate возвращает дату отсечения: выпуски с датой строго раньше
// неё подлежат удалению. Считается от «сегодня» в JST.
func (s *Sweeper) CutoffDate() string {
	now := s.now().In(domain.JST)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, domain.JST)
	return today.AddDate(0, 0, -s.cfg.Days).Format(domain.DateLayout)
}

// Sweep проходит обе категории выпусков и удаляет всё старше окна
// хранения. Возвращает число удалённых записей.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.CutoffDate()
	total := 0
	for _, category := range []domain.RecordCategory{domain.CategoryPublic, domain.CategoryHistorical} {
		n, err := s.sweepCategory(ctx, category, cutoff)
		total += n
		if err != nil {
			return total, fmt.Errorf("чистка категории %s: %w", category, err)
		}
	}
	s.log.Info().Str("cutoff", cutoff).Int("deleted", total).Msg("чистка устаревших выпусков завершена")
	return total, nil
}

func (s *Sweeper) sweepCategory(ctx context.Context, category domain.RecordCategory, cutoff string) (int, error) {
	deleted := 0
	afterSK := ""
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		keys, nextSK, err := s.repo.ListExpiredKeys(ctx, category, cutoff, s.cfg.PageSize, afterSK)
		if err != nil {
			return deleted, fmt.Errorf("обход устаревших ключей: %w", err)
		}
		for start := 0; start < len(keys); start += s.cfg.BatchSize {
			end := start + s.cfg.BatchSize
			if end > len(keys) {
				end = len(keys)
			}
			if err := s.repo.DeleteRecords(ctx, keys[start:end]); err != nil {
				return deleted, fmt.Errorf("удаление пачки: %w", err)
			}
			deleted += end - start
			metrics.AddRetentionDeleted(end - start)
		}
		if nextSK == "" {
			break
		}
		afterSK = nextSK
	}
	if deleted > 0 {
		s.log.Debug().Str("category", string(category)).Int("deleted", deleted).Msg("категория вычищена")
	}
	return deleted, nil
}
