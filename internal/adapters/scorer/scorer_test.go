package scorer

import (
	"context"
	"errors"
	"testing"
	"time"

	"rss-newspaper/internal/domain"
	openai "rss-newspaper/internal/infra/openai"
)

type fixedRand struct {
	intn    int
	float64 float64
}

func (r fixedRand) Intn(n int) int {
	if r.intn >= n {
		return n - 1
	}
	return r.intn
}

func (r fixedRand) Float64() float64 { return r.float64 }

type stubChatClient struct {
	content string
	err     error
	calls   int
}

func (c *stubChatClient) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.calls++
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Content: c.content}}},
	}, nil
}

func articlesForTest() []domain.Article {
	return []domain.Article{
		{Title: "Alpha", Link: "https://a/1", FeedSource: "https://feeds/a"},
		{Title: "Beta", Link: "https://b/1", FeedSource: "https://feeds/b", ImageURL: "https://b/img.png"},
		{Title: "Gamma", Link: "https://c/1", FeedSource: "https://feeds/c"},
	}
}

func TestLLMScoresParsedPositionally(t *testing.T) {
	client := &stubChatClient{content: `{"scores": [95, "oops"]}`}
	s := NewLLM(client, "test-model", time.Second, NewFallback(fixedRand{float64: 0.5}), fixedRand{})

	scores, err := s.ScoreBatch(context.Background(), articlesForTest(), "tech", "en")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// Нечисловой и отсутствующий элементы получают нейтральные 50.
	want := []int{95, 50, 50}
	for i, v := range want {
		if scores[i] != v {
			t.Fatalf("оценка %d: ожидали %d, получили %d", i, v, scores[i])
		}
	}
}

func TestLLMClampsOutOfRange(t *testing.T) {
	client := &stubChatClient{content: `{"scores": [150, -20, 70]}`}
	s := NewLLM(client, "test-model", time.Second, NewFallback(fixedRand{float64: 0.5}), fixedRand{})

	scores, err := s.ScoreBatch(context.Background(), articlesForTest(), "tech", "en")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	for i, v := range scores {
		if v < 0 || v > 100 {
			t.Fatalf("оценка %d вне диапазона: %d", i, v)
		}
	}
	if scores[0] != 100 || scores[1] != 0 || scores[2] != 70 {
		t.Fatalf("ожидали [100 0 70], получили %v", scores)
	}
}

func TestLLMFailureFallsBack(t *testing.T) {
	client := &stubChatClient{err: errors.New("timeout")}
	s := NewLLM(client, "test-model", time.Second, NewFallback(fixedRand{float64: 0.5}), fixedRand{})

	scores, err := s.ScoreBatch(context.Background(), articlesForTest(), "tech", "en")
	if err != nil {
		t.Fatalf("запасной путь не должен возвращать ошибку: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("ожидали 3 оценки, получили %d", len(scores))
	}
	// При Float64()=0.5 разброс равен нулю: формула детерминирована.
	// "Alpha": 5 рун * 0.6 = 3; "Beta" с картинкой: 4*0.6 + 40 = 42.4.
	if scores[0] != 3 {
		t.Fatalf("ожидали 3 для Alpha, получили %d", scores[0])
	}
	if scores[1] != 42 {
		t.Fatalf("ожидали 42 для Beta, получили %d", scores[1])
	}
}

func TestFallbackBounds(t *testing.T) {
	long := make([]rune, 300)
	for i := range long {
		long[i] = 'x'
	}
	articles := []domain.Article{
		{Title: string(long), ImageURL: "https://img", FeedSource: "https://feeds/a"},
		{Title: "", FeedSource: "https://feeds/b"},
	}

	for _, jitter := range []float64{0, 0.5, 0.999} {
		f := NewFallback(fixedRand{float64: jitter})
		scores, _ := f.ScoreBatch(context.Background(), articles, "", "")
		for i, v := range scores {
			if v < 0 || v > 100 {
				t.Fatalf("оценка %d вне диапазона при jitter %v: %d", i, jitter, v)
			}
		}
	}
}
