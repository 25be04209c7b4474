package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT"`
		Host    string `env:"POSTGRES_HOST"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
	Redis struct {
		Host string `env:"REDIS_HOST" env-default:"localhost"`
		Port int    `env:"REDIS_PORT" env-default:"6379"`
		Pass string `env:"REDIS_PASS"`
		DB   int    `env:"REDIS_DB" env-default:"0"`
	}
	Minio struct {
		Endpoint  string `env:"MINIO_ENDPOINT"`
		AccessKey string `env:"MINIO_ACCESS_KEY"`
		SecretKey string `env:"MINIO_SECRET_KEY"`
		Bucket    string `env:"MINIO_BUCKET" env-default:"moments-media"`
		UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
		URLTTLSec int    `env:"MINIO_URL_TTL_SEC" env-default:"86400"`
	}
	Playback struct {
		TickMs          int `env:"PLAYBACK_TICK_MS" env-default:"50"`
		DefaultDwellMs  int `env:"PLAYBACK_DEFAULT_DWELL_MS" env-default:"7000"`
		TextPerWordMs   int `env:"PLAYBACK_TEXT_PER_WORD_MS" env-default:"350"`
		TextMinMs       int `env:"PLAYBACK_TEXT_MIN_MS" env-default:"3000"`
		TextMaxMs       int `env:"PLAYBACK_TEXT_MAX_MS" env-default:"15000"`
		MediaMaxMs      int `env:"PLAYBACK_MEDIA_MAX_MS" env-default:"30000"`
		ViewDwellMs     int `env:"PLAYBACK_VIEW_DWELL_MS" env-default:"1000"`
		ProbeTimeoutMs  int `env:"PLAYBACK_PROBE_TIMEOUT_MS" env-default:"3000"`
		FeedCacheTTLSec int `env:"PLAYBACK_FEED_CACHE_TTL_SEC" env-default:"45"`
	}
	Limits struct {
		GesturesPerSec int `env:"LIMITS_GESTURES_PER_SEC" env-default:"10"`
		GestureBurst   int `env:"LIMITS_GESTURE_BURST" env-default:"20"`
		IntentWorkers  int `env:"LIMITS_INTENT_WORKERS" env-default:"16"`
	}
	Sweeper struct {
		IntervalMinutes int `env:"SWEEPER_INTERVAL_MINUTES" env-default:"10"`
		PurgeAfterDays  int `env:"SWEEPER_PURGE_AFTER_DAYS" env-default:"7"`
	}
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}

// GetDSN returns the postgres connection string used by database/sql callers
// such as the goose migration tool.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("dbname=%s user=%s password=%s host=%s port=%d sslmode=%s",
		c.Postgres.Name, c.Postgres.User, c.Postgres.Pass, c.Postgres.Host, c.Postgres.Port, c.Postgres.SslMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) MediaURLTTL() time.Duration {
	return time.Duration(c.Minio.URLTTLSec) * time.Second
}
