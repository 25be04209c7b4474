package reaction

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("reaction not found")

//go:generate go run go.uber.org/mock/mockgen -source=reaction.go -destination=mocks/mock.go

// Repository stores like reactions on moments. Toggle is the only write: a
// second toggle by the same viewer removes the like.
type Repository interface {
	Toggle(ctx context.Context, momentID, userID string) (liked bool, err error)
	CountsForMoments(ctx context.Context, momentIDs []string) (map[string]int, error)
	LikedSetForViewer(ctx context.Context, momentIDs []string, viewerID string) (map[string]bool, error)
}
