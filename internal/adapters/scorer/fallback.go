package scorer

import (
	"context"
	"math"

	"rss-newspaper/internal/domain"
)

// neutralScore присваивается статье, если модель не вернула её оценку.
const neutralScore = 50

// Fallback — детерминированный запасной скоринг. Никогда не ошибается:
// это последний рубеж, когда модель недоступна.
type Fallback struct {
	rng domain.Rand
}

var _ domain.BatchScorer = (*Fallback)(nil)

// NewFallback создаёт запасной скорер.
func NewFallback(rng domain.Rand) *Fallback {
	return &Fallback{rng: rng}
}

// ScoreBatch оценивает статьи по длине заголовка, наличию картинки и
// небольшому случайному разбросу.
func (f *Fallback) ScoreBatch(_ context.Context, articles []domain.Article, _, _ string) ([]int, error) {
	scores := make([]int, len(articles))
	for i, a := range articles {
		scores[i] = f.score(a)
	}
	return scores, nil
}

func (f *Fallback) score(a domain.Article) int {
	base := math.Min(float64(len([]rune(a.Title)))*0.6, 60)
	if a.HasImage() {
		base += 40
	}
	jitter := f.rng.Float64()*20 - 10
	return clampScore(int(math.Round(base + jitter)))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
