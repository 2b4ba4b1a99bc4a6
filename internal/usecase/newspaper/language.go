package newspaper

import (
	"sort"
	"strings"

	"rss-newspaper/internal/domain"
)

// languageSampleRunes — сколько рун описания участвует в эвристике.
const languageSampleRunes = 50

// jpDensityPercent — порог доли японских знаков, выше которого текст
// считается японским.
const jpDensityPercent = 10

// DetectArticleLanguage определяет язык статьи. Языковой тег ленты
// имеет приоритет над содержимым: тег на "ja" — японский, любой другой
// тег — английский. Без тега работает эвристика плотности японского
// письма по заголовку и началу описания.
func DetectArticleLanguage(a domain.Article, feedLang string) domain.Language {
	if feedLang != "" {
		if strings.HasPrefix(strings.ToLower(feedLang), "ja") {
			return domain.LangJP
		}
		return domain.LangEN
	}

	sample := []rune(a.Title + truncateRunes(a.Description, languageSampleRunes))
	if len(sample) == 0 {
		return domain.LangEN
	}
	japanese := 0
	for _, r := range sample {
		if isJapaneseRune(r) {
			japanese++
		}
	}
	if japanese*100 > len(sample)*jpDensityPercent {
		return domain.LangJP
	}
	return domain.LangEN
}

// isJapaneseRune покрывает хирагану, катакану и кандзи.
func isJapaneseRune(r rune) bool {
	switch {
	case r >= 0x3040 && r <= 0x309F: // хирагана
		return true
	case r >= 0x30A0 && r <= 0x30FF: // катакана
		return true
	case r >= 0x4E00 && r <= 0x9FAF: // кандзи
		return true
	}
	return false
}

// DetectLanguages собирает дедуплицированный набор языков выпуска,
// EN раньше JP.
func DetectLanguages(articles []domain.Article, feedLangs map[string]string) []domain.Language {
	seen := make(map[domain.Language]bool)
	for _, a := range articles {
		seen[DetectArticleLanguage(a, feedLangs[a.FeedSource])] = true
	}
	out := make([]domain.Language, 0, len(seen))
	for lang := range seen {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
