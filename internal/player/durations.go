package player

import (
	"strings"
	"time"

	"github.com/orgball2608/moments-playback-service/internal/domain"
	"github.com/orgball2608/moments-playback-service/pkg/config"
)

// Policy decides how long an item stays on screen before auto-advance.
//
// Precedence: a known media duration (authored or probed) wins, capped to
// MediaMax; text items scale with word count clamped to [TextMin, TextMax];
// anything else falls back to Default.
type Policy struct {
	Default     time.Duration
	TextPerWord time.Duration
	TextMin     time.Duration
	TextMax     time.Duration
	MediaMax    time.Duration
}

func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		Default:     time.Duration(cfg.Playback.DefaultDwellMs) * time.Millisecond,
		TextPerWord: time.Duration(cfg.Playback.TextPerWordMs) * time.Millisecond,
		TextMin:     time.Duration(cfg.Playback.TextMinMs) * time.Millisecond,
		TextMax:     time.Duration(cfg.Playback.TextMaxMs) * time.Millisecond,
		MediaMax:    time.Duration(cfg.Playback.MediaMaxMs) * time.Millisecond,
	}
}

// Dwell returns the initial dwell duration for an item. Media items with an
// unknown duration get Default until a probe later resolves it.
func (p Policy) Dwell(item Item) time.Duration {
	switch item.Kind {
	case domain.KindText:
		return p.textDwell(item.Text)
	case domain.KindImage, domain.KindVideo:
		if item.Duration > 0 {
			return p.ClampMedia(item.Duration)
		}
		return p.Default
	default:
		return p.Default
	}
}

// ClampMedia caps a known media duration so a long video cannot hold the
// viewer hostage.
func (p Policy) ClampMedia(d time.Duration) time.Duration {
	if d <= 0 {
		return p.Default
	}
	if d > p.MediaMax {
		return p.MediaMax
	}
	return d
}

func (p Policy) textDwell(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return p.Default
	}
	d := time.Duration(words) * p.TextPerWord
	if d < p.TextMin {
		return p.TextMin
	}
	if d > p.TextMax {
		return p.TextMax
	}
	return d
}
