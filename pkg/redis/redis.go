package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/orgball2608/moments-playback-service/pkg/config"
	"github.com/orgball2608/moments-playback-service/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In
	LC     fx.Lifecycle
	Logger logger.Logger
	Config *config.Config
}

// New creates a redis client and manages its lifecycle.
func New(opts Opts) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Config.RedisAddr(),
		Password: opts.Config.Redis.Pass,
		DB:       opts.Config.Redis.DB,
	})

	opts.LC.Append(
		fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("failed to ping redis: %w", err)
				}
				opts.Logger.Info("Connected to redis")
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		},
	)

	return client
}
