// Package instagram implements the platform adapter contract over
// Instagram's private web API using a stored browser session.
package instagram

import (
	"context"
	"sync"

	apperrors "github.com/Fernandogf021207/Scr4per-sub000/pkg/errors"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/logger"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/platform"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/ratelimit"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/scroll"
)

// Adapter collects profiles and relations from Instagram.
type Adapter struct {
	client  *Client
	limiter ratelimit.Limiter
	scroll  scroll.Config
	logger  logger.Logger

	mu      sync.Mutex
	userIDs map[string]string
}

// New is the platform.Factory for Instagram.
func New(opts platform.Options) (platform.Adapter, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	client, err := NewClient(opts.Session, opts.Retry, log)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		client:  client,
		limiter: opts.Limiter,
		scroll:  opts.Scroll,
		logger:  log.WithField("platform", "instagram"),
		userIDs: make(map[string]string),
	}, nil
}

func (a *Adapter) Platform() string {
	return "instagram"
}

// GetRootProfile fetches the profile of the requested root user.
func (a *Adapter) GetRootProfile(ctx context.Context, username string) (platform.RawUserItem, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}

	var resp profileResponse
	if err := a.client.GetJSON(ctx, ProfileURL(username), &resp); err != nil {
		return nil, err
	}
	if resp.RequiresToLogin {
		return nil, apperrors.New(apperrors.ErrorTypeAuth, "instagram requires authentication to view this profile")
	}
	user := resp.Data.User
	if user.Username == "" {
		return nil, apperrors.Newf(apperrors.ErrorTypeNotFound, "profile %q not found", username)
	}

	a.rememberUserID(user.Username, user.ID)

	return platform.RawUserItem{
		"username":        user.Username,
		"full_name":       user.FullName,
		"profile_pic_url": user.ProfilePicURL,
		"profile_url":     PublicProfileURL(user.Username),
		"is_private":      user.IsPrivate,
	}, nil
}

// GetFollowers collects accounts following the given user.
func (a *Adapter) GetFollowers(ctx context.Context, username string, maxItems int) ([]platform.RawUserItem, error) {
	return a.collectList(ctx, username, maxItems, FollowersURL)
}

// GetFollowing collects accounts the given user follows.
func (a *Adapter) GetFollowing(ctx context.Context, username string, maxItems int) ([]platform.RawUserItem, error) {
	return a.collectList(ctx, username, maxItems, FollowingURL)
}

// GetFriends is not a relationship Instagram models.
func (a *Adapter) GetFriends(ctx context.Context, username string, maxItems int) ([]platform.RawUserItem, error) {
	return nil, apperrors.New(apperrors.ErrorTypeUnsupported, "instagram has no friend relationship")
}

// GetCommenters requires media enumeration, which this adapter does not
// perform.
func (a *Adapter) GetCommenters(ctx context.Context, username string, maxItems int) ([]platform.RawUserItem, error) {
	return nil, apperrors.New(apperrors.ErrorTypeUnsupported, "instagram commenter collection is not supported")
}

// GetReactors requires media enumeration, which this adapter does not
// perform.
func (a *Adapter) GetReactors(ctx context.Context, username string, maxItems int) ([]platform.RawUserItem, error) {
	return nil, apperrors.New(apperrors.ErrorTypeUnsupported, "instagram reactor collection is not supported")
}

// collectList drives the paginated friendships endpoints through the
// shared collection loop until a termination condition holds.
func (a *Adapter) collectList(ctx context.Context, username string, maxItems int, buildURL func(userID, maxID string, count int) string) ([]platform.RawUserItem, error) {
	userID, err := a.resolveUserID(ctx, username)
	if err != nil {
		return nil, err
	}

	var (
		items    []platform.RawUserItem
		cursor   string
		nextCur  string
		finished bool
	)

	steps := scroll.Steps{
		Collect: func(ctx context.Context) (int, error) {
			if finished {
				return 0, nil
			}
			if err := a.wait(ctx); err != nil {
				return 0, err
			}

			var resp userListResponse
			if err := a.client.GetJSON(ctx, buildURL(userID, cursor, DefaultPageSize), &resp); err != nil {
				return 0, err
			}

			added := 0
			for _, user := range resp.Users {
				if maxItems > 0 && len(items) >= maxItems {
					finished = true
					break
				}
				items = append(items, platform.RawUserItem{
					"username":        user.Username,
					"full_name":       user.FullName,
					"profile_pic_url": user.ProfilePicURL,
					"profile_url":     PublicProfileURL(user.Username),
					"is_private":      user.IsPrivate,
				})
				added++
			}

			nextCur = resp.NextMaxID
			if nextCur == "" {
				finished = true
			}
			return added, nil
		},
		Advance: func(ctx context.Context) error {
			cursor = nextCur
			return nil
		},
		Bottom: func(ctx context.Context) (bool, int, error) {
			return finished, len(items), nil
		},
	}

	stats, err := scroll.Run(ctx, a.scroll, steps, a.logger)
	if err != nil {
		return items, err
	}

	a.logger.InfoWithFields("collection finished", map[string]interface{}{
		"username":   username,
		"collected":  stats.TotalNewItems,
		"iterations": stats.Iterations,
		"reason":     string(stats.Reason),
	})
	return items, nil
}

// resolveUserID maps a username to Instagram's numeric user id,
// fetching the profile on first use.
func (a *Adapter) resolveUserID(ctx context.Context, username string) (string, error) {
	a.mu.Lock()
	id, ok := a.userIDs[username]
	a.mu.Unlock()
	if ok {
		return id, nil
	}

	if _, err := a.GetRootProfile(ctx, username); err != nil {
		return "", err
	}

	a.mu.Lock()
	id, ok = a.userIDs[username]
	a.mu.Unlock()
	if !ok {
		return "", apperrors.Newf(apperrors.ErrorTypeParsing, "profile %q carries no user id", username)
	}
	return id, nil
}

func (a *Adapter) rememberUserID(username, id string) {
	if id == "" {
		return
	}
	a.mu.Lock()
	a.userIDs[username] = id
	a.mu.Unlock()
}

func (a *Adapter) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}
