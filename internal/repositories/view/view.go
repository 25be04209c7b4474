package view

import (
	"context"
)

//go:generate go run go.uber.org/mock/mockgen -source=view.go -destination=mocks/mock.go

// Repository stores moment view records. Record is idempotent at the storage
// level; the playback controller additionally guarantees at most one view
// intent per item per open session.
type Repository interface {
	Record(ctx context.Context, momentID, viewerID string) error
	CountsForMoments(ctx context.Context, momentIDs []string) (map[string]int, error)
	SeenSetForViewer(ctx context.Context, momentIDs []string, viewerID string) (map[string]bool, error)
}
