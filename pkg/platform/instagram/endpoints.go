package instagram

import (
	"fmt"
	"net/url"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// ProfileEndpoint is the endpoint pattern for user profiles
	ProfileEndpoint = "/api/v1/users/web_profile_info/"

	// FollowersEndpoint is the endpoint pattern for a user's followers
	FollowersEndpoint = "/api/v1/friendships/%s/followers/"

	// FollowingEndpoint is the endpoint pattern for accounts a user follows
	FollowingEndpoint = "/api/v1/friendships/%s/following/"

	// DefaultPageSize is the number of users fetched per request
	DefaultPageSize = 12

	// MaxPageSize is the largest page Instagram serves reliably
	MaxPageSize = 50
)

// ProfileURL constructs the URL for fetching a user's profile
func ProfileURL(username string) string {
	params := url.Values{}
	params.Set("username", username)
	return fmt.Sprintf("%s%s?%s", BaseURL, ProfileEndpoint, params.Encode())
}

// FollowersURL constructs the URL for one page of a user's followers
func FollowersURL(userID, maxID string, count int) string {
	return listURL(fmt.Sprintf(FollowersEndpoint, userID), maxID, count)
}

// FollowingURL constructs the URL for one page of accounts a user follows
func FollowingURL(userID, maxID string, count int) string {
	return listURL(fmt.Sprintf(FollowingEndpoint, userID), maxID, count)
}

func listURL(endpoint, maxID string, count int) string {
	if count <= 0 {
		count = DefaultPageSize
	} else if count > MaxPageSize {
		count = MaxPageSize
	}

	params := url.Values{}
	params.Set("count", fmt.Sprintf("%d", count))
	if maxID != "" {
		params.Set("max_id", maxID)
	}
	return fmt.Sprintf("%s%s?%s", BaseURL, endpoint, params.Encode())
}

// PublicProfileURL constructs the public profile URL for a user
func PublicProfileURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}
