package newspaper

import (
	"testing"

	"rss-newspaper/internal/domain"
)

func TestApplyDefaultFeedPenalty(t *testing.T) {
	articles := []domain.Article{
		{Title: "Alpha", FeedSource: "https://feeds/a", Importance: 80},
		{Title: "Beta", FeedSource: "https://feeds/b", Importance: 10},
		{Title: "Gamma", FeedSource: "https://feeds/c", Importance: 55},
	}

	ApplyDefaultFeedPenalty(articles, map[string]bool{
		"https://feeds/a": true,
		"https://feeds/b": true,
	})

	if articles[0].Importance != 50 {
		t.Fatalf("ожидали 80-30=50, получили %d", articles[0].Importance)
	}
	if articles[1].Importance != 0 {
		t.Fatalf("штраф должен упираться в ноль, получили %d", articles[1].Importance)
	}
	if articles[2].Importance != 55 {
		t.Fatalf("обычная лента не штрафуется, получили %d", articles[2].Importance)
	}
}

func TestApplyDefaultFeedPenaltyNoDefaults(t *testing.T) {
	articles := []domain.Article{{Title: "Alpha", FeedSource: "https://feeds/a", Importance: 80}}
	ApplyDefaultFeedPenalty(articles, nil)
	if articles[0].Importance != 80 {
		t.Fatalf("без резервных лент оценки не меняются, получили %d", articles[0].Importance)
	}
}
