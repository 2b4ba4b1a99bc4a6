package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"rss-newspaper/internal/domain"
	"rss-newspaper/internal/infra/metrics"
	openai "rss-newspaper/internal/infra/openai"
)

type chatCompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMScorer оценивает важность статей одним вызовом модели релевантности.
// Любой сбой вызова молча перекрывается детерминированным запасным
// скорингом: скоринг никогда не фатален для выпуска.
type LLMScorer struct {
	client   chatCompletionClient
	model    string
	timeout  time.Duration
	fallback *Fallback
	rng      domain.Rand
}

var _ domain.BatchScorer = (*LLMScorer)(nil)

// NewLLM создаёт скорер на базе Chat Completions с запасным путём.
func NewLLM(client chatCompletionClient, model string, timeout time.Duration, fallback *Fallback, rng domain.Rand) *LLMScorer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLMScorer{client: client, model: model, timeout: timeout, fallback: fallback, rng: rng}
}

// Разные редакторские ракурсы, чтобы повторные выпуски одной темы
// не получали идентичные ранжировки.
var perspectives = []string{
	"an editor picking the front page of a daily newspaper",
	"a curious reader scanning headlines over morning coffee",
	"a news curator hunting for stories with lasting impact",
	"a magazine editor who values striking visuals and fresh angles",
}

// Ответ разбирается в []any: нечисловой элемент массива не должен
// ронять разбор целиком, он просто получает нейтральную оценку.
type llmScoresResponse struct {
	Scores []any `json:"scores"`
}

// ScoreBatch возвращает оценки 0..100, позиционно совпадающие со статьями.
func (s *LLMScorer) ScoreBatch(ctx context.Context, articles []domain.Article, theme, locale string) ([]int, error) {
	if len(articles) == 0 {
		return nil, nil
	}
	scores, err := s.scoreViaLLM(ctx, articles, theme, locale)
	if err != nil {
		log.Warn().Err(err).Int("articles", len(articles)).Msg("скоринг: переход на запасной путь")
		metrics.IncScorerFallback()
		return s.fallback.ScoreBatch(ctx, articles, theme, locale)
	}
	return scores, nil
}

func (s *LLMScorer) scoreViaLLM(ctx context.Context, articles []domain.Article, theme, locale string) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var list strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&list, "%d. title: %q; description: %q; has_image: %v\n",
			i+1, a.Title, truncateRunes(a.Description, 100), a.HasImage())
	}

	perspective := perspectives[s.rng.Intn(len(perspectives))]
	userPrompt := fmt.Sprintf(`You are %s. Score each article below for a personalized newspaper.

Theme of the newspaper: %q. Reader locale: %q.

Scoring rubric, per article:
- Relevance to the theme: 0-60. Directly on-theme: 40-60. Indirectly related: 20-39. Barely or not related: 0-19.
- Image presence: add a flat 20 points if has_image is true.
- Title appeal and freshness: 0-20. Catchy and timely: 13-20. Average: 6-12. Dull or dated: 0-5.

Articles:
%s
Return strictly a JSON object of the form {"scores": [n1, n2, ...]} where the
array has exactly %d integers in 0..100, one per article, in input order.`,
		perspective, theme, locale, list.String(), len(articles))

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: "You rate news articles for curation. Answer with JSON only."},
			{Role: openai.RoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ResponseFormatTypeJSONObject,
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: пустой ответ")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var parsed llmScoresResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("распаковка ответа модели: %w", err)
	}

	scores := make([]int, len(articles))
	for i := range articles {
		scores[i] = neutralScore
		if i >= len(parsed.Scores) {
			continue
		}
		if v, ok := parsed.Scores[i].(float64); ok {
			scores[i] = clampScore(int(v))
		}
	}
	return scores, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
