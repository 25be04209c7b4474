package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddFeedIndexes, downAddFeedIndexes)
}

func upAddFeedIndexes(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE INDEX idx_moments_author_active ON moments (author_id, expires_at) WHERE deleted_at IS NULL;
	CREATE INDEX idx_moments_expires ON moments (expires_at) WHERE deleted_at IS NULL;
	CREATE INDEX idx_moment_views_viewer ON moment_views (viewer_id, moment_id);
	`)
	if err != nil {
		return err
	}
	return nil
}

func downAddFeedIndexes(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	DROP INDEX idx_moment_views_viewer;
	DROP INDEX idx_moments_expires;
	DROP INDEX idx_moments_author_active;
	`)
	if err != nil {
		return err
	}
	return nil
}
