package reply

import (
	"context"
	"errors"

	"github.com/orgball2608/moments-playback-service/internal/domain"
)

var ErrCannotCreate = errors.New("error create reply")

//go:generate go run go.uber.org/mock/mockgen -source=reply.go -destination=mocks/mock.go

type Repository interface {
	Create(ctx context.Context, r domain.Reply) (string, error)
	CountsForMoments(ctx context.Context, momentIDs []string) (map[string]int, error)
}
