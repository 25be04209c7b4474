package media

import (
	"context"
	"time"
)

//go:generate go run go.uber.org/mock/mockgen -source=media.go -destination=mocks/mock.go

// Resolver maps stored media keys to fetchable URLs and answers duration
// probes for video objects.
type Resolver interface {
	// ResolveURL returns a time-limited fetchable URL for a media key.
	ResolveURL(ctx context.Context, key string) (string, error)
	// ProbeDuration returns the playable duration of a media object, or
	// errors.ErrUnknownDuration when it cannot be determined. Callers fall
	// back to the default dwell, never block on a probe.
	ProbeDuration(ctx context.Context, key string) (time.Duration, error)
}
