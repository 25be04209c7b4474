package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/orgball2608/moments-playback-service/pkg/logger"
)

// Config shapes the exponential backoff between attempts.
type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// IntentConfig is tuned for engagement intents, which run under a short
// per-intent deadline: the whole retry schedule has to fit inside it.
func IntentConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
	}
}

// Do runs operation until it succeeds, the retry budget is spent, or ctx is
// cancelled. Every failed attempt is logged before the next one is scheduled.
func Do(ctx context.Context, log logger.Logger, operationName string, operation func() error, cfg Config) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.MaxInterval = cfg.MaxInterval
	bo.Multiplier = cfg.Multiplier
	bo.Reset()

	notify := func(err error, next time.Duration) {
		log.Warn(
			"Attempt failed, backing off",
			"operation", operationName,
			"error", err,
			"next_attempt_in", next.Round(time.Millisecond).String(),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, cfg.MaxRetries), ctx)
	return backoff.RetryNotify(operation, policy, notify)
}
