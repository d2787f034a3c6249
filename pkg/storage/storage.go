// Package storage persists collected profiles and relationships to
// durable storage. Persistence is a side effect of a run; callers treat
// sink failures as warnings, never as run failures.
package storage

import (
	"context"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
)

// Sink receives profiles and relationships for durable storage. Both
// operations are idempotent upserts.
type Sink interface {
	// UpsertProfile stores a profile keyed by (platform, username).
	UpsertProfile(ctx context.Context, profile models.ProfileObservation) error

	// AddRelationship stores a relationship keyed by
	// (platform, owner, related, type).
	AddRelationship(ctx context.Context, rel models.Relation) error
}
