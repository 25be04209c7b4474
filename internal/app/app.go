package app

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/orgball2608/moments-playback-service/internal/events"
	"github.com/orgball2608/moments-playback-service/internal/feed/feedimpl"
	"github.com/orgball2608/moments-playback-service/internal/media"
	"github.com/orgball2608/moments-playback-service/internal/media/minioimpl"
	_ "github.com/orgball2608/moments-playback-service/internal/migrations"
	repositories "github.com/orgball2608/moments-playback-service/internal/repositories/fx"
	"github.com/orgball2608/moments-playback-service/internal/server"
	"github.com/orgball2608/moments-playback-service/internal/sweeper"
	"github.com/orgball2608/moments-playback-service/internal/viewer"
	"github.com/orgball2608/moments-playback-service/internal/ws"
	"github.com/orgball2608/moments-playback-service/pkg/config"
	"github.com/orgball2608/moments-playback-service/pkg/logger"
	"github.com/orgball2608/moments-playback-service/pkg/pgx"
	"github.com/orgball2608/moments-playback-service/pkg/redis"
	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
)

var App = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		pgx.New,
		redis.New,
	),
	fx.Provide(
		fx.Annotate(
			minioimpl.New,
			fx.As(new(media.Resolver)),
		),
		fx.Annotate(
			ws.NewHub,
			fx.As(fx.Self()),
			fx.As(new(events.AuthorHub)),
		),
	),
	repositories.Module,
	feedimpl.Module,
	events.Module,
	viewer.Module,
	sweeper.Module,
	server.Module,
	fx.Invoke(migrate),
	fx.Invoke(run),
)

// migrate applies the registered Go migrations before anything touches the
// schema.
func migrate(cfg *config.Config) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	return goose.Up(db, ".")
}

func run(lc fx.Lifecycle, log logger.Logger, hub *ws.Hub, sw *sweeper.Sweeper, _ *server.Server) {
	appCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go hub.Run()

			if err := sw.Schedule(appCtx); err != nil {
				return err
			}

			log.Info("Moments playback service started")
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			hub.Stop()
			return nil
		},
	})
}
