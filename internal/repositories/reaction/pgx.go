package reaction

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/moments-playback-service/internal/repositories"
)

func NewPgx(pg *pgxpool.Pool) *Pgx {
	return &Pgx{pg: pg}
}

var _ Repository = (*Pgx)(nil)

type Pgx struct {
	pg *pgxpool.Pool
}

// Toggle removes an existing like, or inserts one when none exists, inside a
// single transaction. Returns the liked state after the call.
func (p *Pgx) Toggle(ctx context.Context, momentID, userID string) (bool, error) {
	tx, err := p.pg.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	del, args, err := repositories.SqBuilder.
		Delete("moment_reactions").
		Where(sq.Eq{"moment_id": momentID, "user_id": userID}).
		ToSql()
	if err != nil {
		return false, repositories.ErrBadQuery
	}

	tag, err := tx.Exec(ctx, del, args...)
	if err != nil {
		return false, err
	}

	liked := false
	if tag.RowsAffected() == 0 {
		ins, args, err := repositories.SqBuilder.
			Insert("moment_reactions").
			Columns("moment_id", "user_id", "created_at").
			Values(momentID, userID, time.Now()).
			ToSql()
		if err != nil {
			return false, repositories.ErrBadQuery
		}
		if _, err := tx.Exec(ctx, ins, args...); err != nil {
			return false, err
		}
		liked = true
	}

	return liked, tx.Commit(ctx)
}

func (p *Pgx) CountsForMoments(ctx context.Context, momentIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(momentIDs))
	if len(momentIDs) == 0 {
		return counts, nil
	}

	query, args, err := repositories.SqBuilder.
		Select("moment_id", "COUNT(*)").
		From("moment_reactions").
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

func (p *Pgx) LikedSetForViewer(ctx context.Context, momentIDs []string, viewerID string) (map[string]bool, error) {
	liked := make(map[string]bool, len(momentIDs))
	if len(momentIDs) == 0 {
		return liked, nil
	}

	query, args, err := repositories.SqBuilder.
		Select("moment_id").
		From("moment_reactions").
		Where(sq.Eq{"moment_id": momentIDs, "user_id": viewerID}).
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
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		liked[id] = true
	}
	return liked, rows.Err()
}
