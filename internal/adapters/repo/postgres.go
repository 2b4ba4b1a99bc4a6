package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rss-newspaper/internal/domain"
)

// Postgres реализует хранилище выпусков на основе pgxpool.
//
// Схема повторяет ключи исходного хранилища: составной первичный ключ
// pk/sk и колонки gsi1pk/gsi1sk — вторичный индекс, по которому чистка
// находит просроченные выпуски без полного скана.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.NewspaperRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

func recordPK(newspaperID string) string { return "NEWSPAPER#" + newspaperID }

func recordSK(date string) string { return "DATE#" + date }

func recordGSI1SK(date, newspaperID string) string {
	return "DATE#" + date + "#" + newspaperID
}

// GetRecord возвращает выпуск по точному ключу (газета, дата).
func (p *Postgres) GetRecord(ctx context.Context, newspaperID, date string) (domain.NewspaperRecord, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		rec       domain.NewspaperRecord
		feedURLs  []byte
		articles  []byte
		languages []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT d.newspaper_id, d.date, d.feed_urls, d.articles, d.languages,
		       d.summary, d.is_public, d.locale, d.created_at,
		       COALESCE(v.view_count, 0)
		FROM newspaper_dates d
		LEFT JOIN newspaper_views v ON v.newspaper_id = d.newspaper_id
		WHERE d.pk = $1 AND d.sk = $2`,
		recordPK(newspaperID), recordSK(date),
	).Scan(&rec.NewspaperID, &rec.Date, &feedURLs, &articles, &languages,
		&rec.Summary, &rec.IsPublic, &rec.Locale, &rec.CreatedAt, &rec.ViewCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewspaperRecord{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.NewspaperRecord{}, &domain.StorageError{Op: "get record", Err: err}
	}
	if err := json.Unmarshal(feedURLs, &rec.FeedURLs); err != nil {
		return domain.NewspaperRecord{}, &domain.StorageError{Op: "decode feed urls", Err: err}
	}
	if err := json.Unmarshal(articles, &rec.Articles); err != nil {
		return domain.NewspaperRecord{}, &domain.StorageError{Op: "decode articles", Err: err}
	}
	if err := json.Unmarshal(languages, &rec.Languages); err != nil {
		return domain.NewspaperRecord{}, &domain.StorageError{Op: "decode languages", Err: err}
	}
	return rec, nil
}

// PutRecord сохраняет выпуск. Повторная запись того же ключа перекрывает
// предыдущую: параллельные сборки строят выпуск из одних и тех же лент,
// поэтому гонка безвредна.
func (p *Postgres) PutRecord(ctx context.Context, rec domain.NewspaperRecord) error {
	feedURLs, err := json.Marshal(rec.FeedURLs)
	if err != nil {
		return fmt.Errorf("marshal feed urls: %w", err)
	}
	articles, err := json.Marshal(rec.Articles)
	if err != nil {
		return fmt.Errorf("marshal articles: %w", err)
	}
	languages, err := json.Marshal(rec.Languages)
	if err != nil {
		return fmt.Errorf("marshal languages: %w", err)
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	_, err = p.pool.Exec(ctx, `
		INSERT INTO newspaper_dates
			(pk, sk, gsi1pk, gsi1sk, newspaper_id, date, feed_urls, articles,
			 languages, summary, is_public, locale, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (pk, sk) DO UPDATE SET
			gsi1pk = EXCLUDED.gsi1pk,
			gsi1sk = EXCLUDED.gsi1sk,
			feed_urls = EXCLUDED.feed_urls,
			articles = EXCLUDED.articles,
			languages = EXCLUDED.languages,
			summary = EXCLUDED.summary,
			is_public = EXCLUDED.is_public,
			locale = EXCLUDED.locale,
			created_at = EXCLUDED.created_at`,
		recordPK(rec.NewspaperID), recordSK(rec.Date),
		string(rec.Category()), recordGSI1SK(rec.Date, rec.NewspaperID),
		rec.NewspaperID, rec.Date, feedURLs, articles, languages,
		rec.Summary, rec.IsPublic, rec.Locale, rec.CreatedAt)
	if err != nil {
		return &domain.StorageError{Op: "put record", Err: err}
	}
	return nil
}

// IncrementViews атомарно увеличивает счётчик просмотров газеты.
// Счётчик живёт на уровне газеты, не датированного выпуска.
func (p *Postgres) IncrementViews(ctx context.Context, newspaperID string) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var views int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO newspaper_views (newspaper_id, view_count)
		VALUES ($1, 1)
		ON CONFLICT (newspaper_id)
		DO UPDATE SET view_count = newspaper_views.view_count + 1
		RETURNING view_count`,
		newspaperID,
	).Scan(&views)
	if err != nil {
		return 0, &domain.StorageError{Op: "increment views", Err: err}
	}
	return views, nil
}

// ListExpiredKeys постранично отдаёт ключи выпусков категории category
// с датой строго раньше cutoffDate. Сравнение по gsi1sk лексикографично
// корректно, потому что даты дополнены нулями.
func (p *Postgres) ListExpiredKeys(ctx context.Context, category domain.RecordCategory, cutoffDate string, limit int, afterSK string) ([]domain.RecordKey, string, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, `
		SELECT newspaper_id, date, gsi1sk
		FROM newspaper_dates
		WHERE gsi1pk = $1 AND gsi1sk < $2 AND gsi1sk > $3
		ORDER BY gsi1sk
		LIMIT $4`,
		string(category), recordSK(cutoffDate), afterSK, limit)
	if err != nil {
		return nil, "", &domain.StorageError{Op: "list expired", Err: err}
	}
	defer rows.Close()

	var (
		keys   []domain.RecordKey
		lastSK string
	)
	for rows.Next() {
		var key domain.RecordKey
		if err := rows.Scan(&key.NewspaperID, &key.Date, &lastSK); err != nil {
			return nil, "", &domain.StorageError{Op: "scan expired", Err: err}
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, "", &domain.StorageError{Op: "list expired", Err: err}
	}
	if len(keys) < limit {
		lastSK = ""
	}
	return keys, lastSK, nil
}

// DeleteRecords удаляет выпуски пачкой. Отсутствующий ключ не ошибка:
// повторный запуск чистки должен быть идемпотентным.
func (p *Postgres) DeleteRecords(ctx context.Context, keys []domain.RecordKey) error {
	if len(keys) == 0 {
		return nil
	}
	pks := make([]string, 0, len(keys))
	sks := make([]string, 0, len(keys))
	for _, key := range keys {
		pks = append(pks, recordPK(key.NewspaperID))
		sks = append(sks, recordSK(key.Date))
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx, `
		DELETE FROM newspaper_dates
		WHERE (pk, sk) IN (SELECT * FROM unnest($1::text[], $2::text[]))`,
		pks, sks)
	if err != nil {
		return &domain.StorageError{Op: "delete records", Err: err}
	}
	return nil
}
