package storage

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/logger"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
)

const graphSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	platform    TEXT NOT NULL,
	username    TEXT NOT NULL,
	full_name   TEXT NOT NULL DEFAULT '',
	profile_url TEXT NOT NULL DEFAULT '',
	photo_url   TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (platform, username)
);
CREATE TABLE IF NOT EXISTS relationships (
	platform   TEXT NOT NULL,
	owner      TEXT NOT NULL,
	related    TEXT NOT NULL,
	type       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (platform, owner, related, type)
);
CREATE INDEX IF NOT EXISTS idx_relationships_platform_owner ON relationships (platform, owner);
`

// PostgresSink implements Sink over Postgres with conflict-ignoring
// upserts, so replaying a run never duplicates rows.
type PostgresSink struct {
	db     *sqlx.DB
	logger logger.Logger
}

// NewPostgresSink creates a Postgres-backed persistence sink.
func NewPostgresSink(db *sqlx.DB, log logger.Logger) *PostgresSink {
	if log == nil {
		log = logger.GetLogger()
	}
	return &PostgresSink{db: db, logger: log}
}

// EnsureSchema creates the graph tables if they do not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, graphSchema); err != nil {
		return fmt.Errorf("failed to ensure graph schema: %w", err)
	}
	return nil
}

// UpsertProfile stores a profile, keeping existing non-empty fields
// when the incoming observation is sparser.
func (s *PostgresSink) UpsertProfile(ctx context.Context, profile models.ProfileObservation) error {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("profiles")
	ib.Cols("platform", "username", "full_name", "profile_url", "photo_url")
	ib.Values(profile.Platform, profile.Username, profile.FullName, profile.ProfileURL, profile.PhotoURL)

	query, args := ib.Build()
	query += ` ON CONFLICT (platform, username) DO UPDATE SET
		full_name = CASE WHEN length(EXCLUDED.full_name) > length(profiles.full_name) THEN EXCLUDED.full_name ELSE profiles.full_name END,
		profile_url = CASE WHEN profiles.profile_url = '' THEN EXCLUDED.profile_url ELSE profiles.profile_url END,
		photo_url = CASE WHEN profiles.photo_url = '' THEN EXCLUDED.photo_url ELSE profiles.photo_url END,
		updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", profile.Key(), err)
	}
	return nil
}

// AddRelationship stores a relationship edge, ignoring duplicates.
func (s *PostgresSink) AddRelationship(ctx context.Context, rel models.Relation) error {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("relationships")
	ib.Cols("platform", "owner", "related", "type")
	ib.Values(rel.Platform, rel.Source, rel.Target, string(rel.Type))

	query, args := ib.Build()
	query += " ON CONFLICT (platform, owner, related, type) DO NOTHING"

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to add relationship %s -> %s: %w", rel.Source, rel.Target, err)
	}
	return nil
}
