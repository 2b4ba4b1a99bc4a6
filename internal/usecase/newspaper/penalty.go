package newspaper

import "rss-newspaper/internal/domain"

// defaultFeedPenalty — штраф статьям резервных лент, применяется после
// обоих путей скоринга уже поверх ограничения 0..100.
const defaultFeedPenalty = 30

// ApplyDefaultFeedPenalty вычитает штраф у статей резервных лент.
// Вызывается после присвоения оценок, с полом в ноль.
func ApplyDefaultFeedPenalty(articles []domain.Article, defaultFeeds map[string]bool) {
	if len(defaultFeeds) == 0 {
		return
	}
	for i := range articles {
		if !defaultFeeds[articles[i].FeedSource] {
			continue
		}
		articles[i].Importance -= defaultFeedPenalty
		if articles[i].Importance < 0 {
			articles[i].Importance = 0
		}
	}
}
