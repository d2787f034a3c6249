package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
)

func obs(platform, username, fullName string) models.ProfileObservation {
	return models.ProfileObservation{
		Platform: platform,
		Username: username,
		FullName: fullName,
	}
}

func src(platform, username string) models.ProfileKey {
	return models.ProfileKey{Platform: platform, Username: username}
}

func TestAddProfileIdempotent(t *testing.T) {
	a := New()
	o := models.ProfileObservation{
		Platform:   "instagram",
		Username:   "u1",
		FullName:   "User One",
		ProfileURL: "https://instagram.com/u1",
		PhotoURL:   "https://cdn/u1.jpg",
	}

	a.AddProfile(o, src("instagram", "root"))
	first := a.BuildPayload(1)

	a.AddProfile(o, src("instagram", "root"))
	second := a.BuildPayload(1)

	assert.Equal(t, first.Profiles, second.Profiles)
	assert.Equal(t, 1, a.ProfileCount())
}

func TestFullNameLongerWins(t *testing.T) {
	a := New()
	a.AddProfile(obs("instagram", "jo", "Jo"), src("instagram", "root"))
	a.AddProfile(obs("instagram", "jo", "Jonathan"), src("instagram", "root"))

	payload := a.BuildPayload(1)
	require.Len(t, payload.Profiles, 1)
	assert.Equal(t, "Jonathan", payload.Profiles[0].FullName)

	// Reverse order yields the same result
	b := New()
	b.AddProfile(obs("instagram", "jo", "Jonathan"), src("instagram", "root"))
	b.AddProfile(obs("instagram", "jo", "Jo"), src("instagram", "root"))

	payload = b.BuildPayload(1)
	require.Len(t, payload.Profiles, 1)
	assert.Equal(t, "Jonathan", payload.Profiles[0].FullName)
}

func TestFullNameTieKeepsFirst(t *testing.T) {
	a := New()
	a.AddProfile(obs("instagram", "u", "Anna"), src("instagram", "root"))
	a.AddProfile(obs("instagram", "u", "Bert"), src("instagram", "root"))

	payload := a.BuildPayload(1)
	require.Len(t, payload.Profiles, 1)
	assert.Equal(t, "Anna", payload.Profiles[0].FullName)
}

func TestEnrichNeverOverwritesWithEmpty(t *testing.T) {
	a := New()
	a.AddProfile(models.ProfileObservation{
		Platform:   "instagram",
		Username:   "u",
		FullName:   "Full Name",
		ProfileURL: "https://instagram.com/u",
		PhotoURL:   "https://cdn/u.jpg",
	}, src("instagram", "root"))
	a.AddProfile(obs("instagram", "u", ""), src("instagram", "root"))

	payload := a.BuildPayload(1)
	require.Len(t, payload.Profiles, 1)
	assert.Equal(t, "Full Name", payload.Profiles[0].FullName)
	assert.Equal(t, "https://instagram.com/u", payload.Profiles[0].ProfileURL)
	assert.Equal(t, "https://cdn/u.jpg", payload.Profiles[0].PhotoURL)
}

func TestURLFieldsFirstWriterWins(t *testing.T) {
	a := New()
	a.AddProfile(models.ProfileObservation{
		Platform:   "instagram",
		Username:   "u",
		ProfileURL: "https://instagram.com/u",
	}, src("instagram", "root"))
	a.AddProfile(models.ProfileObservation{
		Platform:   "instagram",
		Username:   "u",
		ProfileURL: "https://other/u",
		PhotoURL:   "https://cdn/u.jpg",
	}, src("instagram", "root"))

	payload := a.BuildPayload(1)
	require.Len(t, payload.Profiles, 1)
	assert.Equal(t, "https://instagram.com/u", payload.Profiles[0].ProfileURL)
	assert.Equal(t, "https://cdn/u.jpg", payload.Profiles[0].PhotoURL)
}

func TestRelationDedupAndSelfLoopRejection(t *testing.T) {
	a := New()
	a.AddRelation("instagram", "a", "b", models.RelationFollower)
	a.AddRelation("instagram", "a", "b", models.RelationFollower)
	a.AddRelation("instagram", "a", "a", models.RelationFollower)

	assert.Equal(t, 1, a.RelationCount())
}

func TestRelationUnknownTypeDropped(t *testing.T) {
	a := New()
	a.AddRelation("instagram", "a", "b", models.RelationType("likes"))
	assert.Equal(t, 0, a.RelationCount())
}

func TestFanOutWithOverlap(t *testing.T) {
	a := New()
	rootX := src("P", "x")
	rootY := src("P", "y")

	a.AddRoot(obs("P", "x", ""), rootX)
	a.AddRoot(obs("P", "y", ""), rootY)

	// Root x reports followers u1, u2; root y reports u2, u3
	a.AddProfile(obs("P", "u1", ""), rootX)
	a.AddProfile(obs("P", "u2", ""), rootX)
	a.AddProfile(obs("P", "u2", ""), rootY)
	a.AddProfile(obs("P", "u3", ""), rootY)

	payload := a.BuildPayload(2)

	followers := make(map[string][]string)
	for _, p := range payload.Profiles {
		followers[p.Username] = p.Sources
	}
	assert.Len(t, payload.Profiles, 5) // x, y, u1, u2, u3
	assert.Equal(t, []string{"P:x", "P:y"}, followers["u2"])
	assert.Equal(t, []string{"P:x"}, followers["u1"])
	assert.Equal(t, []string{"P:y"}, followers["u3"])
}

func TestRootProfilesPreserveRequestOrder(t *testing.T) {
	a := New()
	a.AddRoot(obs("P", "zeta", ""), src("P", "zeta"))
	a.AddRoot(obs("P", "alpha", ""), src("P", "alpha"))

	payload := a.BuildPayload(2)
	assert.Equal(t, []string{"P:zeta", "P:alpha"}, payload.RootProfiles)
}

func TestUnresolvedRootDroppedFromRootProfiles(t *testing.T) {
	a := New()
	a.AddRoot(obs("P", "resolved", ""), src("P", "resolved"))
	// A root whose profile never resolved stays registered but unrendered
	a.RegisterRoot(src("P", "ghost"))

	payload := a.BuildPayload(2)
	assert.Equal(t, []string{"P:resolved"}, payload.RootProfiles)
}

func TestBuildPayloadMeta(t *testing.T) {
	a := New()
	a.AddRoot(obs("P", "x", ""), src("P", "x"))
	a.AddWarning(models.WarnPartialFailure, "P:y: boom")

	payload := a.BuildPayload(2)
	assert.Equal(t, models.SchemaVersion, payload.SchemaVersion)
	assert.Equal(t, 2, payload.Meta.RootsRequested)
	assert.Equal(t, 1, payload.Meta.RootsProcessed)
	require.Len(t, payload.Warnings, 1)
	assert.Equal(t, models.WarnPartialFailure, payload.Warnings[0].Code)
	assert.False(t, payload.Meta.GeneratedAt.IsZero())
}
