package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE moments (
		id UUID PRIMARY KEY,
		author_id TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('image', 'video', 'text')),
		media_key TEXT,
		text_body TEXT,
		style JSONB,
		special_day JSONB,
		authored_duration_ms INTEGER,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		deleted_at TIMESTAMP WITH TIME ZONE
	);

	CREATE TABLE moment_reactions (
		moment_id UUID NOT NULL REFERENCES moments(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		PRIMARY KEY (moment_id, user_id)
	);

	CREATE TABLE moment_replies (
		id UUID PRIMARY KEY,
		moment_id UUID NOT NULL REFERENCES moments(id) ON DELETE CASCADE,
		author_id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE moment_views (
		moment_id UUID NOT NULL REFERENCES moments(id) ON DELETE CASCADE,
		viewer_id TEXT NOT NULL,
		viewed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		PRIMARY KEY (moment_id, viewer_id)
	);
	`)
	if err != nil {
		return err
	}
	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	DROP TABLE moment_views;
	DROP TABLE moment_replies;
	DROP TABLE moment_reactions;
	DROP TABLE moments;
	`)
	if err != nil {
		return err
	}
	return nil
}
