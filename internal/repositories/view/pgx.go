package view

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

func (p *Pgx) Record(ctx context.Context, momentID, viewerID string) error {
	query, args, err := repositories.SqBuilder.
		Insert("moment_views").
		Columns("moment_id", "viewer_id", "viewed_at").
		Values(momentID, viewerID, time.Now()).
		Suffix("ON CONFLICT (moment_id, viewer_id) DO NOTHING").
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	_, err = p.pg.Exec(ctx, query, args...)
	return err
}

func (p *Pgx) CountsForMoments(ctx context.Context, momentIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(momentIDs))
	if len(momentIDs) == 0 {
		return counts, nil
	}

	query, args, err := repositories.SqBuilder.
		Select("moment_id", "COUNT(*)").
		From("moment_views").
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

func (p *Pgx) SeenSetForViewer(ctx context.Context, momentIDs []string, viewerID string) (map[string]bool, error) {
	seen := make(map[string]bool, len(momentIDs))
	if len(momentIDs) == 0 {
		return seen, nil
	}

	query, args, err := repositories.SqBuilder.
		Select("moment_id").
		From("moment_views").
		Where(sq.Eq{"moment_id": momentIDs, "viewer_id": viewerID}).
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
		seen[id] = true
	}
	return seen, rows.Err()
}
