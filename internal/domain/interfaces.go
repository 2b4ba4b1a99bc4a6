package domain

import (
	"context"
	"time"
)

// FeedFetcher выгружает статьи одной ленты за окно ретроспективы.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string, lookbackDays int) (FeedResult, error)
}

// BatchScorer оценивает важность пачки статей одним вызовом.
// Возвращает срез оценок 0..100, позиционно совпадающий со статьями.
type BatchScorer interface {
	ScoreBatch(ctx context.Context, articles []Article, theme, locale string) ([]int, error)
}

// NewspaperRepo управляет датированными выпусками и счётчиком просмотров.
type NewspaperRepo interface {
	GetRecord(ctx context.Context, newspaperID, date string) (NewspaperRecord, error)
	PutRecord(ctx context.Context, record NewspaperRecord) error
	IncrementViews(ctx context.Context, newspaperID string) (int64, error)
	// ListExpiredKeys постранично отдаёт ключи выпусков категории
	// category с датой строго раньше cutoffDate. afterSK — курсор
	// предыдущей страницы, пустая строка для первой.
	ListExpiredKeys(ctx context.Context, category RecordCategory, cutoffDate string, limit int, afterSK string) (keys []RecordKey, nextSK string, err error)
	// DeleteRecords удаляет ключи пачкой; отсутствующий ключ не ошибка.
	DeleteRecords(ctx context.Context, keys []RecordKey) error
}

// Cache используется для простых TTL-хранилищ и одноразовых замков.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Rand — инъецируемый источник случайности, чтобы тесты могли
// зафиксировать целевое число статей и перемешивание.
type Rand interface {
	Intn(n int) int
	Float64() float64
}
