package feed

import (
	"context"
	"errors"

	"github.com/orgball2608/moments-playback-service/internal/domain"
)

var ErrNoActiveMoments = errors.New("no active moments")

//go:generate go run go.uber.org/mock/mockgen -source=feed.go -destination=mocks/mock.go
type Builder interface {
	GroupForViewer(ctx context.Context, viewerID, authorID string) (*domain.MomentGroup, error)
	GroupsForViewer(ctx context.Context, viewerID string) ([]domain.MomentGroup, error)
	InvalidateAuthor(ctx context.Context, authorID string) error
}
