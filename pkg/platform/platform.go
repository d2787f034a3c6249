// Package platform defines the adapter surface that each supported
// social platform implements, plus the registry that resolves them.
package platform

import (
	"context"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/logger"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/ratelimit"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/retry"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/scroll"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/session"
)

// RawUserItem is a loosely shaped user record as returned by a
// platform. Field names vary per platform and are normalized downstream.
type RawUserItem map[string]any

// Adapter exposes the collection capabilities of one platform. Methods
// other than Platform and GetRootProfile are optional capabilities; an
// adapter returns a typed platform_unsupported error for relations it
// cannot collect.
type Adapter interface {
	// Platform returns the platform identifier, e.g. "instagram".
	Platform() string

	// GetRootProfile fetches the profile of the requested root user.
	GetRootProfile(ctx context.Context, username string) (RawUserItem, error)

	// GetFollowers collects accounts following the given user, up to
	// maxItems when positive.
	GetFollowers(ctx context.Context, username string, maxItems int) ([]RawUserItem, error)

	// GetFollowing collects accounts the given user follows.
	GetFollowing(ctx context.Context, username string, maxItems int) ([]RawUserItem, error)

	// GetFriends collects mutual relationships where the platform has
	// that notion.
	GetFriends(ctx context.Context, username string, maxItems int) ([]RawUserItem, error)

	// GetCommenters collects accounts that commented on the user's
	// recent posts.
	GetCommenters(ctx context.Context, username string, maxItems int) ([]RawUserItem, error)

	// GetReactors collects accounts that reacted to the user's recent
	// posts.
	GetReactors(ctx context.Context, username string, maxItems int) ([]RawUserItem, error)
}

// Options carries the shared dependencies adapters are built with.
type Options struct {
	Session *session.State
	Scroll  scroll.Config
	Retry   retry.Config
	Limiter ratelimit.Limiter
	Logger  logger.Logger
}

// Factory builds an adapter bound to a session.
type Factory func(opts Options) (Adapter, error)

// RelationCollector returns the adapter method that collects the given
// relation type, or nil when the type is unknown.
func RelationCollector(a Adapter, rel models.RelationType) func(ctx context.Context, username string, maxItems int) ([]RawUserItem, error) {
	switch rel {
	case models.RelationFollower:
		return a.GetFollowers
	case models.RelationFollowing:
		return a.GetFollowing
	case models.RelationFriend:
		return a.GetFriends
	case models.RelationCommented:
		return a.GetCommenters
	case models.RelationReacted:
		return a.GetReactors
	default:
		return nil
	}
}
