// Package graph holds the run-scoped aggregator that merges profile and
// relation observations from many scrape roots into one deduplicated payload.
package graph

import (
	"sort"
	"time"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
)

// profileRecord is the aggregator-owned, enrich-only profile state
type profileRecord struct {
	platform   string
	username   string
	fullName   string
	profileURL string
	photoURL   string
	sources    map[models.ProfileKey]struct{}
}

// Aggregator collects observations for exactly one orchestration run. It is
// not safe for concurrent use; the orchestrator funnels all mutations
// through a single goroutine.
type Aggregator struct {
	profiles  map[models.ProfileKey]*profileRecord
	relations map[models.Relation]struct{}
	roots     []models.ProfileKey
	rootSeen  map[models.ProfileKey]struct{}
	warnings  []models.Warning
	startedAt time.Time
}

// New creates an empty aggregator for a fresh run
func New() *Aggregator {
	return &Aggregator{
		profiles:  make(map[models.ProfileKey]*profileRecord),
		relations: make(map[models.Relation]struct{}),
		rootSeen:  make(map[models.ProfileKey]struct{}),
		startedAt: time.Now(),
	}
}

// RegisterRoot marks key as a batch entry point, preserving request order
// for output. Roots whose profile never resolves are later dropped from
// root_profiles, not errored.
func (a *Aggregator) RegisterRoot(key models.ProfileKey) {
	if _, ok := a.rootSeen[key]; !ok {
		a.rootSeen[key] = struct{}{}
		a.roots = append(a.roots, key)
	}
}

// AddRoot ingests a root profile observation and marks it as a batch entry
// point
func (a *Aggregator) AddRoot(obs models.ProfileObservation, source models.ProfileKey) {
	a.RegisterRoot(obs.Key())
	a.AddProfile(obs, source)
}

// AddProfile upserts a profile observation. Existing records are only ever
// enriched: full_name prefers the longer non-empty value (ties keep the
// existing one), profile_url and photo_url are first-writer-wins.
func (a *Aggregator) AddProfile(obs models.ProfileObservation, source models.ProfileKey) {
	if obs.Platform == "" || obs.Username == "" {
		return
	}

	key := obs.Key()
	rec, ok := a.profiles[key]
	if !ok {
		rec = &profileRecord{
			platform: obs.Platform,
			username: obs.Username,
			sources:  make(map[models.ProfileKey]struct{}),
		}
		a.profiles[key] = rec
	}

	if len(obs.FullName) > len(rec.fullName) {
		rec.fullName = obs.FullName
	}
	if rec.profileURL == "" {
		rec.profileURL = obs.ProfileURL
	}
	if rec.photoURL == "" {
		rec.photoURL = obs.PhotoURL
	}
	rec.sources[source] = struct{}{}
}

// AddRelation inserts a directed edge into the relation set. Unknown relation
// types and self-relations are dropped silently; identical tuples collapse.
func (a *Aggregator) AddRelation(platform, source, target string, relType models.RelationType) {
	if !relType.Valid() {
		return
	}
	if source == "" || target == "" || source == target {
		return
	}
	a.relations[models.Relation{
		Platform: platform,
		Source:   source,
		Target:   target,
		Type:     relType,
	}] = struct{}{}
}

// AddWarning records a non-fatal condition for the final payload
func (a *Aggregator) AddWarning(code, message string) {
	a.warnings = append(a.warnings, models.Warning{Code: code, Message: message})
}

// Warnings returns the warnings recorded so far
func (a *Aggregator) Warnings() []models.Warning {
	return a.warnings
}

// ProfileCount returns the number of distinct profiles seen
func (a *Aggregator) ProfileCount() int {
	return len(a.profiles)
}

// RelationCount returns the number of distinct relations seen
func (a *Aggregator) RelationCount() int {
	return len(a.relations)
}

// BuildPayload renders the aggregated graph. Roots that never resolved a
// profile are dropped from root_profiles. The call does not mutate the
// aggregator; repeated calls yield equivalent output up to timestamps.
func (a *Aggregator) BuildPayload(rootsRequested int) *models.Payload {
	buildStart := time.Now()

	rootProfiles := make([]string, 0, len(a.roots))
	for _, key := range a.roots {
		if _, ok := a.profiles[key]; ok {
			rootProfiles = append(rootProfiles, key.String())
		}
	}

	profiles := make([]models.ProfilePayload, 0, len(a.profiles))
	for _, rec := range a.profiles {
		sources := make([]string, 0, len(rec.sources))
		for src := range rec.sources {
			sources = append(sources, src.String())
		}
		sort.Strings(sources)

		profiles = append(profiles, models.ProfilePayload{
			Platform:   rec.platform,
			Username:   rec.username,
			FullName:   rec.fullName,
			ProfileURL: rec.profileURL,
			PhotoURL:   rec.photoURL,
			Sources:    sources,
		})
	}
	// Deterministic profile ordering for testability
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Platform != profiles[j].Platform {
			return profiles[i].Platform < profiles[j].Platform
		}
		return profiles[i].Username < profiles[j].Username
	})

	relations := make([]models.Relation, 0, len(a.relations))
	for rel := range a.relations {
		relations = append(relations, rel)
	}
	sort.Slice(relations, func(i, j int) bool {
		ri, rj := relations[i], relations[j]
		if ri.Platform != rj.Platform {
			return ri.Platform < rj.Platform
		}
		if ri.Source != rj.Source {
			return ri.Source < rj.Source
		}
		if ri.Target != rj.Target {
			return ri.Target < rj.Target
		}
		return ri.Type < rj.Type
	})

	warnings := make([]models.Warning, len(a.warnings))
	copy(warnings, a.warnings)

	return &models.Payload{
		SchemaVersion: models.SchemaVersion,
		RootProfiles:  rootProfiles,
		Profiles:      profiles,
		Relations:     relations,
		Warnings:      warnings,
		Meta: models.Meta{
			SchemaVersion:  models.SchemaVersion,
			RootsRequested: rootsRequested,
			RootsProcessed: len(a.roots),
			GeneratedAt:    time.Now().UTC(),
			BuildMS:        time.Since(buildStart).Milliseconds(),
		},
	}
}
