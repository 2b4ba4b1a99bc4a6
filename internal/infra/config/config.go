package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	Queue struct {
		Backend string `envconfig:"QUEUE_BACKEND" default:"redis"`
		Key     string `envconfig:"GENERATION_QUEUE_KEY" default:"newspaper_jobs"`
		AMQPURL string `envconfig:"AMQP_URL"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Feeds struct {
		Defaults     []string `envconfig:"DEFAULT_FEEDS"`
		MinUserFeeds int      `envconfig:"MIN_USER_FEEDS" default:"2"`
	} `envconfig:""`

	Curation struct {
		MinArticles    int `envconfig:"MIN_ARTICLES" default:"8"`
		MinViable      int `envconfig:"MIN_VIABLE_ARTICLES" default:"3"`
		DefaultFeedCap int `envconfig:"DEFAULT_FEED_CAP" default:"2"`
	} `envconfig:""`

	Warmup struct {
		Newspapers []string `envconfig:"WARMUP_NEWSPAPERS"`
		Hour       int      `envconfig:"WARMUP_HOUR" default:"5"`
	} `envconfig:""`

	Retention struct {
		Days      int `envconfig:"RETENTION_DAYS" default:"7"`
		BatchSize int `envconfig:"RETENTION_BATCH_SIZE" default:"25"`
		PageSize  int `envconfig:"RETENTION_PAGE_SIZE" default:"100"`
		SweepHour int `envconfig:"RETENTION_SWEEP_HOUR" default:"4"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
