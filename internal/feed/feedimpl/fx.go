package feedimpl

import (
	"github.com/orgball2608/moments-playback-service/internal/feed"
	"go.uber.org/fx"
)

var Module = fx.Provide(
	fx.Annotate(
		New,
		fx.As(new(feed.Builder)),
	),
)
