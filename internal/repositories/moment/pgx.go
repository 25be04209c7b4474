package moment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

const momentColumns = "id, author_id, kind, media_key, text_body, style, special_day, authored_duration_ms, created_at, expires_at"

type row struct {
	ID                 string
	AuthorID           string
	Kind               string
	MediaKey           *string
	TextBody           *string
	Style              []byte
	SpecialDay         []byte
	AuthoredDurationMs *int
	CreatedAt          time.Time
	ExpiresAt          time.Time
}

func (r row) toDomain() (domain.Moment, error) {
	m := domain.Moment{
		ID:        r.ID,
		AuthorID:  r.AuthorID,
		Kind:      domain.Kind(r.Kind),
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
	if r.MediaKey != nil {
		m.MediaKey = *r.MediaKey
	}
	if r.TextBody != nil {
		m.Text = *r.TextBody
	}
	if r.AuthoredDurationMs != nil {
		m.AuthoredDurationMs = *r.AuthoredDurationMs
	}
	if len(r.Style) > 0 {
		var style domain.TextStyle
		if err := json.Unmarshal(r.Style, &style); err != nil {
			return m, err
		}
		m.Style = &style
	}
	if len(r.SpecialDay) > 0 {
		var day domain.SpecialDay
		if err := json.Unmarshal(r.SpecialDay, &day); err != nil {
			return m, err
		}
		m.SpecialDay = &day
	}
	return m, nil
}

func scanMoment(scanner interface{ Scan(...any) error }) (domain.Moment, error) {
	var r row
	err := scanner.Scan(
		&r.ID,
		&r.AuthorID,
		&r.Kind,
		&r.MediaKey,
		&r.TextBody,
		&r.Style,
		&r.SpecialDay,
		&r.AuthoredDurationMs,
		&r.CreatedAt,
		&r.ExpiresAt,
	)
	if err != nil {
		return domain.Moment{}, err
	}
	return r.toDomain()
}

func (p *Pgx) Create(ctx context.Context, m domain.Moment) (string, error) {
	id := m.ID
	if id == "" {
		id = uuid.New().String()
	}

	var style, specialDay any
	if m.Style != nil {
		b, err := json.Marshal(m.Style)
		if err != nil {
			return "", err
		}
		style = b
	}
	if m.SpecialDay != nil {
		b, err := json.Marshal(m.SpecialDay)
		if err != nil {
			return "", err
		}
		specialDay = b
	}

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	expiresAt := m.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(24 * time.Hour)
	}

	query, args, err := repositories.SqBuilder.
		Insert("moments").
		Columns(
			"id",
			"author_id",
			"kind",
			"media_key",
			"text_body",
			"style",
			"special_day",
			"authored_duration_ms",
			"created_at",
			"expires_at",
		).Values(
		id,
		m.AuthorID,
		string(m.Kind),
		nilIfEmpty(m.MediaKey),
		nilIfEmpty(m.Text),
		style,
		specialDay,
		nilIfZero(m.AuthoredDurationMs),
		createdAt,
		expiresAt,
	).ToSql()
	if err != nil {
		return "", repositories.ErrBadQuery
	}

	if _, err := p.pg.Exec(ctx, query, args...); err != nil {
		return "", errors.Join(err, ErrCannotCreate)
	}
	return id, nil
}

func (p *Pgx) GetByID(ctx context.Context, id string) (*domain.Moment, error) {
	query, args, err := repositories.SqBuilder.
		Select(momentColumns).
		From("moments").
		Where(sq.Eq{"id": id, "deleted_at": nil}).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	m, err := scanMoment(p.pg.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (p *Pgx) ListActiveByAuthor(ctx context.Context, authorID string, now time.Time) ([]domain.Moment, error) {
	query, args, err := repositories.SqBuilder.
		Select(momentColumns).
		From("moments").
		Where(sq.Eq{"author_id": authorID, "deleted_at": nil}).
		Where(sq.Gt{"expires_at": now}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var moments []domain.Moment
	for rows.Next() {
		m, err := scanMoment(rows)
		if err != nil {
			return nil, err
		}
		moments = append(moments, m)
	}
	return moments, rows.Err()
}

func (p *Pgx) ListAuthorsWithActive(ctx context.Context, now time.Time) ([]string, error) {
	query, args, err := repositories.SqBuilder.
		Select("author_id").
		From("moments").
		Where(sq.Eq{"deleted_at": nil}).
		Where(sq.Gt{"expires_at": now}).
		GroupBy("author_id").
		OrderBy("MAX(created_at) DESC").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		authors = append(authors, id)
	}
	return authors, rows.Err()
}

func (p *Pgx) SoftDeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query, args, err := repositories.SqBuilder.
		Update("moments").
		Set("deleted_at", now).
		Where(sq.Eq{"deleted_at": nil}).
		Where(sq.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, repositories.ErrBadQuery
	}

	tag, err := p.pg.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Pgx) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := repositories.SqBuilder.
		Delete("moments").
		Where(sq.NotEq{"deleted_at": nil}).
		Where(sq.Lt{"deleted_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, repositories.ErrBadQuery
	}

	tag, err := p.pg.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nilIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
