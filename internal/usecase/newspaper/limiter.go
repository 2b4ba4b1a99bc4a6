package newspaper

import "rss-newspaper/internal/domain"

// LimitDefaultFeeds ограничивает статьи резервных лент квотой cap на
// ленту. Статьи выбранных пользователем лент не трогаются. Если после
// ограничения выпуск меньше minTotal, излишки возвращаются в порядке
// поступления — не по важности. Детерминировано.
func LimitDefaultFeeds(articles []domain.Article, defaultFeeds map[string]bool, cap, minTotal int) []domain.Article {
	if cap <= 0 || len(defaultFeeds) == 0 {
		return articles
	}

	kept := make([]domain.Article, 0, len(articles))
	var overflow []domain.Article
	perFeed := make(map[string]int)

	for _, a := range articles {
		if defaultFeeds[a.FeedSource] {
			if perFeed[a.FeedSource] >= cap {
				overflow = append(overflow, a)
				continue
			}
			perFeed[a.FeedSource]++
		}
		kept = append(kept, a)
	}

	for len(kept) < minTotal && len(overflow) > 0 {
		kept = append(kept, overflow[0])
		overflow = overflow[1:]
	}
	return kept
}
