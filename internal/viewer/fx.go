package viewer

import (
	"github.com/orgball2608/moments-playback-service/internal/ws"
	"go.uber.org/fx"
)

var Module = fx.Provide(
	fx.Annotate(
		New,
		fx.As(new(ws.SessionFactory)),
	),
)
