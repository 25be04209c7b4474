package moment

import (
	"context"
	"errors"
	"time"

	"github.com/orgball2608/moments-playback-service/internal/domain"
)

var ErrNotFound = errors.New("moment not found")
var ErrCannotCreate = errors.New("error create moment")

//go:generate go run go.uber.org/mock/mockgen -source=moment.go -destination=mocks/mock.go

// Repository provides access to stored moments. Expiry is data-driven:
// "active" always means created within the rolling 24h window and not yet
// swept.
type Repository interface {
	Create(ctx context.Context, m domain.Moment) (string, error)
	GetByID(ctx context.Context, id string) (*domain.Moment, error)
	ListActiveByAuthor(ctx context.Context, authorID string, now time.Time) ([]domain.Moment, error)
	ListAuthorsWithActive(ctx context.Context, now time.Time) ([]string, error)
	SoftDeleteExpired(ctx context.Context, now time.Time) (int64, error)
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
