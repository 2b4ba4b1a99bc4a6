package domain

import (
	"context"
	"time"
)

// GenerationCause описывает источник задачи на сборку выпуска.
type GenerationCause string

const (
	// CauseWarmup — плановый прогрев выпусков за сегодня.
	CauseWarmup GenerationCause = "warmup"
	// CauseManual — сборка запрошена вручную.
	CauseManual GenerationCause = "manual"
)

// GenerationJob содержит параметры фоновой сборки выпуска.
type GenerationJob struct {
	ID          string          `json:"job_id,omitempty"`
	NewspaperID string          `json:"newspaper_id"`
	Date        string          `json:"date"`
	FeedURLs    []string        `json:"feed_urls"`
	Theme       string          `json:"theme,omitempty"`
	Locale      string          `json:"locale,omitempty"`
	IsPublic    bool            `json:"is_public"`
	RequestedAt time.Time       `json:"requested_at"`
	Cause       GenerationCause `json:"cause"`
}

// GenerationQueue описывает очередь задач на сборку выпусков.
type GenerationQueue interface {
	Enqueue(ctx context.Context, job GenerationJob) error
	Pop(ctx context.Context) (GenerationJob, error)
}
