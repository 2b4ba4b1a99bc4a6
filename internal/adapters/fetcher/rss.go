package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"rss-newspaper/internal/domain"
)

const maxBodySize = 5 * 1024 * 1024

const maxDescriptionRunes = 300

// HTTPClient — интерфейс выполнения HTTP-запросов.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RSS выгружает и нормализует статьи одной ленты.
type RSS struct {
	client HTTPClient
	parser *gofeed.Parser
	now    func() time.Time
}

var _ domain.FeedFetcher = (*RSS)(nil)

// New создаёт фетчер с указанным HTTP-клиентом.
func New(client HTTPClient) *RSS {
	return &RSS{
		client: client,
		parser: gofeed.NewParser(),
		now:    time.Now,
	}
}

// Fetch выгружает ленту и возвращает статьи, опубликованные не раньше,
// чем lookbackDays дней назад. Любой сбой заворачивается в FetchError:
// падение одной ленты не должно ронять соседние.
func (f *RSS) Fetch(ctx context.Context, feedURL string, lookbackDays int) (domain.FeedResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return domain.FeedResult{}, &domain.FetchError{URL: feedURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", "rss-newspaper/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.FeedResult{}, &domain.FetchError{URL: feedURL, Err: fmt.Errorf("http get: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.FeedResult{}, &domain.FetchError{URL: feedURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return domain.FeedResult{}, &domain.FetchError{URL: feedURL, Err: fmt.Errorf("read body: %w", err)}
	}

	feed, err := f.parser.ParseString(string(body))
	if err != nil {
		return domain.FeedResult{}, &domain.FetchError{URL: feedURL, Err: fmt.Errorf("parse feed: %w", err)}
	}

	now := f.now()
	cutoff := now.AddDate(0, 0, -lookbackDays)

	articles := make([]domain.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.Link) == "" {
			continue
		}
		pub := now
		if item.PublishedParsed != nil {
			pub = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pub = *item.UpdatedParsed
		}
		if pub.Before(cutoff) {
			continue
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}

		articles = append(articles, domain.Article{
			Title:       strings.TrimSpace(item.Title),
			Description: truncateRunes(stripHTML(desc), maxDescriptionRunes),
			Link:        item.Link,
			PubDate:     pub,
			ImageURL:    extractImageURL(item),
			FeedSource:  feedURL,
			FeedTitle:   feed.Title,
		})
	}

	return domain.FeedResult{
		URL:      feedURL,
		Title:    feed.Title,
		Language: feed.Language,
		Articles: articles,
	}, nil
}

var imgTagRe = regexp.MustCompile(`(?i)<img[^>]+src=["']?([^"'\s>]+)`)

// extractImageURL ищет картинку статьи по фиксированному приоритету:
// enclosure → media:content → media:thumbnail → первый <img> в контенте.
func extractImageURL(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") || enc.Type == "" {
			return enc.URL
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, ext := range media[name] {
				if url := ext.Attrs["url"]; url != "" {
					return url
				}
			}
		}
	}
	for _, html := range []string{item.Content, item.Description} {
		if m := imgTagRe.FindStringSubmatch(html); m != nil {
			return m[1]
		}
	}
	return ""
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
