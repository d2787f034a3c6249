package models

import "time"

// SchemaVersion is the version of the output payload schema.
const SchemaVersion = 2

// ProfileKey identifies a profile across a run by (platform, username)
type ProfileKey struct {
	Platform string
	Username string
}

// String renders the key in the canonical "platform:username" form
func (k ProfileKey) String() string {
	return k.Platform + ":" + k.Username
}

// RootRequest is one requested entry point of a scrape batch
type RootRequest struct {
	Platform       string `json:"platform" yaml:"platform"`
	Username       string `json:"username" yaml:"username"`
	MaxItems       int    `json:"max_items" yaml:"max_items"`
	Tenant         string `json:"tenant,omitempty" yaml:"tenant,omitempty"`
	StrictSessions bool   `json:"strict_sessions,omitempty" yaml:"strict_sessions,omitempty"`
	Persist        bool   `json:"persist,omitempty" yaml:"persist,omitempty"`
}

// Key returns the identity key of the request
func (r RootRequest) Key() ProfileKey {
	return ProfileKey{Platform: r.Platform, Username: r.Username}
}

// ProfileObservation is a single sighting of a profile produced by one
// adapter call. Optional fields are empty strings when unknown.
type ProfileObservation struct {
	Platform   string `json:"platform"`
	Username   string `json:"username"`
	FullName   string `json:"full_name,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
}

// Key returns the identity key of the observed profile
func (o ProfileObservation) Key() ProfileKey {
	return ProfileKey{Platform: o.Platform, Username: o.Username}
}

// RelationType is one of the canonical relation tokens
type RelationType string

const (
	RelationFollower  RelationType = "follower"
	RelationFollowing RelationType = "following"
	RelationFriend    RelationType = "friend"
	RelationCommented RelationType = "commented"
	RelationReacted   RelationType = "reacted"
)

// Valid reports whether t is one of the canonical tokens
func (t RelationType) Valid() bool {
	switch t {
	case RelationFollower, RelationFollowing, RelationFriend, RelationCommented, RelationReacted:
		return true
	}
	return false
}

// Relation is a directed edge between two usernames on one platform
type Relation struct {
	Platform string       `json:"platform"`
	Source   string       `json:"source"`
	Target   string       `json:"target"`
	Type     RelationType `json:"type"`
}

// Warning codes attached to the final payload
const (
	WarnPlatformUnsupported = "PLATFORM_UNSUPPORTED"
	WarnStorageStateMissing = "STORAGE_STATE_MISSING"
	WarnRootSkipped         = "ROOT_SKIPPED"
	WarnDBWarning           = "DB_WARNING"
	WarnPartialFailure      = "PARTIAL_FAILURE"
)

// Warning is a non-fatal condition recorded during a run
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ProfilePayload is the rendered form of one aggregated profile
type ProfilePayload struct {
	Platform   string   `json:"platform"`
	Username   string   `json:"username"`
	FullName   string   `json:"full_name,omitempty"`
	ProfileURL string   `json:"profile_url,omitempty"`
	PhotoURL   string   `json:"photo_url,omitempty"`
	Sources    []string `json:"sources"`
}

// Meta carries run metadata on the payload
type Meta struct {
	SchemaVersion  int              `json:"schema_version"`
	RootsRequested int              `json:"roots_requested"`
	RootsProcessed int              `json:"roots_processed"`
	GeneratedAt    time.Time        `json:"generated_at"`
	BuildMS        int64            `json:"build_ms"`
	RootsTimings   map[string]int64 `json:"roots_timings,omitempty"`
	MaxConcurrency int              `json:"max_concurrency,omitempty"`
}

// Payload is the versioned output of one orchestration run
type Payload struct {
	SchemaVersion int              `json:"schema_version"`
	RootProfiles  []string         `json:"root_profiles"`
	Profiles      []ProfilePayload `json:"profiles"`
	Relations     []Relation       `json:"relations"`
	Warnings      []Warning        `json:"warnings"`
	Meta          Meta             `json:"meta"`
}
