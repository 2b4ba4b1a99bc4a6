package newspaper

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rss-newspaper/internal/domain"
)

func limiterArticles(feed string, n int) []domain.Article {
	out := make([]domain.Article, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Article{
			Title:      fmt.Sprintf("%s %d", feed, i),
			Link:       fmt.Sprintf("https://%s/%d", feed, i),
			FeedSource: "https://" + feed + "/rss",
		})
	}
	return out
}

func TestLimitDefaultFeedsCapsPerFeed(t *testing.T) {
	var articles []domain.Article
	articles = append(articles, limiterArticles("user", 8)...)
	articles = append(articles, limiterArticles("fallback", 5)...)
	defaults := map[string]bool{"https://fallback/rss": true}

	got := LimitDefaultFeeds(articles, defaults, 2, 8)

	perFeed := map[string]int{}
	for _, a := range got {
		perFeed[a.FeedSource]++
	}
	if perFeed["https://user/rss"] != 8 {
		t.Fatalf("статьи пользовательской ленты не должны отсекаться, получили %d", perFeed["https://user/rss"])
	}
	if perFeed["https://fallback/rss"] != 2 {
		t.Fatalf("ожидали квоту 2 для резервной ленты, получили %d", perFeed["https://fallback/rss"])
	}
}

func TestLimitDefaultFeedsBackfillsToMinimum(t *testing.T) {
	var articles []domain.Article
	articles = append(articles, limiterArticles("user", 3)...)
	articles = append(articles, limiterArticles("fallback", 9)...)
	defaults := map[string]bool{"https://fallback/rss": true}

	got := LimitDefaultFeeds(articles, defaults, 2, 8)

	if len(got) != 8 {
		t.Fatalf("ожидали добивку до минимума 8, получили %d", len(got))
	}
	// Излишки возвращаются в порядке поступления, не по важности.
	if got[5].Link != "https://fallback/2" || got[6].Link != "https://fallback/3" {
		t.Fatalf("ожидали добивку в порядке поступления, получили %v, %v", got[5].Link, got[6].Link)
	}
}

func TestLimitDefaultFeedsDeterministic(t *testing.T) {
	var articles []domain.Article
	articles = append(articles, limiterArticles("a", 4)...)
	articles = append(articles, limiterArticles("b", 6)...)
	defaults := map[string]bool{"https://b/rss": true}

	first := LimitDefaultFeeds(articles, defaults, 2, 8)
	second := LimitDefaultFeeds(articles, defaults, 2, 8)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("результат должен быть детерминированным (-first +second):\n%s", diff)
	}
	if len(first) > len(articles) {
		t.Fatalf("выход длиннее входа: %d > %d", len(first), len(articles))
	}
}

func TestLimitDefaultFeedsNoDefaults(t *testing.T) {
	articles := limiterArticles("user", 12)
	got := LimitDefaultFeeds(articles, nil, 2, 8)
	if len(got) != 12 {
		t.Fatalf("без резервных лент ничего не отсекается, получили %d", len(got))
	}
}
