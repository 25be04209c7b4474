package reply

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/moments-playback-service/internal/domain"
	"github.com/orgball2608/moments-playback-service/internal/repositories"
)

func NewPgx(pg *pgxpool.Pool) *Pgx {
	return &Pgx{pg: pg}
}

var _ Repository = (*Pgx)(nil)

type Pgx struct {
	pg *pgxpool.Pool
}

func (p *Pgx) Create(ctx context.Context, r domain.Reply) (string, error) {
	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query, args, err := repositories.SqBuilder.
		Insert("moment_replies").
		Columns("id", "moment_id", "author_id", "body", "created_at").
		Values(id, r.MomentID, r.AuthorID, r.Text, createdAt).
		ToSql()
	if err != nil {
		return "", repositories.ErrBadQuery
	}

	if _, err := p.pg.Exec(ctx, query, args...); err != nil {
		return "", errors.Join(err, ErrCannotCreate)
	}
	return id, nil
}

func (p *Pgx) CountsForMoments(ctx context.Context, momentIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(momentIDs))
	if len(momentIDs) == 0 {
		return counts, nil
	}

	query, args, err := repositories.SqBuilder.
		Select("moment_id", "COUNT(*)").
		From("moment_replies").
		Where(sq.Eq{"moment_id": momentIDs}).
		GroupBy("moment_id").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
