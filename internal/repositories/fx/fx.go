package fx

import (
	"github.com/orgball2608/moments-playback-service/internal/repositories/moment"
	"github.com/orgball2608/moments-playback-service/internal/repositories/reaction"
	"github.com/orgball2608/moments-playback-service/internal/repositories/reply"
	"github.com/orgball2608/moments-playback-service/internal/repositories/view"
	"go.uber.org/fx"
)

var Module = fx.Options(
	moment.Module,
	reaction.Module,
	reply.Module,
	view.Module,
)
