package orchestrator

import (
	"net/url"
	"strings"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/platform"
)

// Raw items arrive with several historical spellings per semantic
// field. Extraction follows a fixed priority list per field; the first
// non-empty value wins.
var (
	usernameKeys   = []string{"username", "user_name", "handle", "screen_name"}
	fullNameKeys   = []string{"full_name", "fullname", "name", "display_name"}
	profileURLKeys = []string{"profile_url", "url", "link", "profile_link"}
	photoURLKeys   = []string{"photo_url", "avatar", "profile_pic_url", "image"}
)

// normalizeItem extracts a typed observation from a raw platform item.
// When no explicit username field is present the username is derived
// from the profile URL. Returns false when no username can be found.
func normalizeItem(platformName string, item platform.RawUserItem) (models.ProfileObservation, bool) {
	obs := models.ProfileObservation{
		Platform:   platformName,
		Username:   firstString(item, usernameKeys),
		FullName:   strings.TrimSpace(firstString(item, fullNameKeys)),
		ProfileURL: firstString(item, profileURLKeys),
		PhotoURL:   firstString(item, photoURLKeys),
	}

	if obs.Username == "" {
		obs.Username = usernameFromURL(obs.ProfileURL)
	}
	obs.Username = NormalizeUsername(obs.Username)
	if obs.Username == "" {
		return models.ProfileObservation{}, false
	}
	return obs, true
}

// firstString returns the first non-empty string value among keys.
func firstString(item platform.RawUserItem, keys []string) string {
	for _, key := range keys {
		if v, ok := item[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// usernameFromURL derives a handle from the last non-empty path segment
// of a profile URL.
func usernameFromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

// NormalizeUsername canonicalizes a handle: trims whitespace, strips a
// leading @ and lowercases.
func NormalizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "@")
	return strings.ToLower(username)
}
