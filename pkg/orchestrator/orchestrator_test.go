package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/config"
	apperrors "github.com/Fernandogf021207/Scr4per-sub000/pkg/errors"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/platform"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/session"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/storage"
)

// fakeAdapter serves canned lists and tracks concurrent use.
type fakeAdapter struct {
	platformName string
	profiles     map[string]platform.RawUserItem
	lists        map[string]map[models.RelationType][]platform.RawUserItem
	listErr      map[string]error
	panicOn      string

	inFlight *int32
	maxSeen  *int32
}

func (f *fakeAdapter) Platform() string { return f.platformName }

func (f *fakeAdapter) track() func() {
	if f.inFlight == nil {
		return func() {}
	}
	n := atomic.AddInt32(f.inFlight, 1)
	for {
		seen := atomic.LoadInt32(f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(f.maxSeen, seen, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return func() { atomic.AddInt32(f.inFlight, -1) }
}

func (f *fakeAdapter) GetRootProfile(ctx context.Context, username string) (platform.RawUserItem, error) {
	defer f.track()()
	item, ok := f.profiles[username]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrorTypeNotFound, "profile %q not found", username)
	}
	return item, nil
}

func (f *fakeAdapter) list(username string, rel models.RelationType) ([]platform.RawUserItem, error) {
	if username == f.panicOn {
		panic("adapter exploded")
	}
	if err, ok := f.listErr[username]; ok && err != nil {
		return nil, err
	}
	return f.lists[username][rel], nil
}

func (f *fakeAdapter) GetFollowers(ctx context.Context, username string, maxItems int) ([]platform.RawUserItem, error) {
	defer f.track()()
	return f.list(username, models.RelationFollower)
}

func (f *fakeAdapter) GetFollowing(ctx context.Context, username string, maxItems int) ([]platform.RawUserItem, error) {
	defer f.track()()
	return f.list(username, models.RelationFollowing)
}

func (f *fakeAdapter) GetFriends(ctx context.Context, username string, maxItems int) ([]platform.RawUserItem, error) {
	return nil, apperrors.New(apperrors.ErrorTypeUnsupported, "no friend relationship")
}

func (f *fakeAdapter) GetCommenters(ctx context.Context, username string, maxItems int) ([]platform.RawUserItem, error) {
	defer f.track()()
	return f.list(username, models.RelationCommented)
}

func (f *fakeAdapter) GetReactors(ctx context.Context, username string, maxItems int) ([]platform.RawUserItem, error) {
	return nil, apperrors.New(apperrors.ErrorTypeUnsupported, "no reactions")
}

// staticResolver serves sessions from a map keyed by session.Key.
type staticResolver map[string]*session.State

func (r staticResolver) Resolve(platformName, tenant string) (*session.State, error) {
	return r[session.Key(platformName, tenant)], nil
}

// recordingSink captures persisted rows, optionally failing every call.
type recordingSink struct {
	mu        sync.Mutex
	profiles  []models.ProfileObservation
	relations []models.Relation
	fail      bool
}

func (s *recordingSink) UpsertProfile(ctx context.Context, profile models.ProfileObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("database unavailable")
	}
	s.profiles = append(s.profiles, profile)
	return nil
}

func (s *recordingSink) AddRelationship(ctx context.Context, rel models.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("database unavailable")
	}
	s.relations = append(s.relations, rel)
	return nil
}

var _ storage.Sink = (*recordingSink)(nil)

func rawUser(username string) platform.RawUserItem {
	return platform.RawUserItem{
		"username":  username,
		"full_name": "User " + username,
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Scraper.MaxRoots = 5
	cfg.Scraper.MaxConcurrency = 3
	cfg.Scraper.DefaultMaxItems = 100
	return cfg
}

func instagramSession() *session.State {
	return &session.State{
		Platform:     "instagram",
		StorageState: json.RawMessage(`{"cookies":[{"name":"sessionid","value":"x"}]}`),
	}
}

type orchestratorFixture struct {
	adapter  *fakeAdapter
	resolver staticResolver
	sink     *recordingSink
}

func newFixture() *orchestratorFixture {
	return &orchestratorFixture{
		adapter: &fakeAdapter{
			platformName: "instagram",
			profiles:     make(map[string]platform.RawUserItem),
			lists:        make(map[string]map[models.RelationType][]platform.RawUserItem),
			listErr:      make(map[string]error),
		},
		resolver: staticResolver{"instagram": instagramSession()},
		sink:     &recordingSink{},
	}
}

func (f *orchestratorFixture) build(t *testing.T, cfg *config.Config) *Orchestrator {
	t.Helper()
	registry := platform.NewRegistry(map[string]platform.Factory{
		"instagram": func(opts platform.Options) (platform.Adapter, error) {
			return f.adapter, nil
		},
	})

	o, err := New(Options{
		Config:   cfg,
		Registry: registry,
		Sessions: f.resolver,
		Sink:     f.sink,
	})
	require.NoError(t, err)
	return o
}

func (f *orchestratorFixture) addRoot(username string, followers, following []string) {
	f.adapter.profiles[username] = rawUser(username)
	lists := map[models.RelationType][]platform.RawUserItem{}
	for _, u := range followers {
		lists[models.RelationFollower] = append(lists[models.RelationFollower], rawUser(u))
	}
	for _, u := range following {
		lists[models.RelationFollowing] = append(lists[models.RelationFollowing], rawUser(u))
	}
	f.adapter.lists[username] = lists
}

func warningCodes(p *models.Payload) []string {
	codes := make([]string, 0, len(p.Warnings))
	for _, w := range p.Warnings {
		codes = append(codes, w.Code)
	}
	return codes
}

func TestRunRejectsEmptyBatch(t *testing.T) {
	f := newFixture()
	o := f.build(t, testConfig())

	_, err := o.Run(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsBatchValidation(err))
}

func TestRunRejectsOversizedBatch(t *testing.T) {
	f := newFixture()
	o := f.build(t, testConfig())

	var requests []models.RootRequest
	for i := 0; i < 6; i++ {
		requests = append(requests, models.RootRequest{Platform: "instagram", Username: fmt.Sprintf("user%d", i)})
	}

	_, err := o.Run(context.Background(), requests)
	require.Error(t, err)
	assert.True(t, apperrors.IsBatchValidation(err))
}

func TestRunRejectsMalformedUsername(t *testing.T) {
	f := newFixture()
	o := f.build(t, testConfig())

	_, err := o.Run(context.Background(), []models.RootRequest{
		{Platform: "instagram", Username: "has spaces!"},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsBatchValidation(err))
}

func TestRunSingleRoot(t *testing.T) {
	f := newFixture()
	f.addRoot("root1", []string{"fan_a", "fan_b"}, []string{"idol_c"})
	o := f.build(t, testConfig())

	payload, err := o.Run(context.Background(), []models.RootRequest{
		{Platform: "instagram", Username: "Root1"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"instagram:root1"}, payload.RootProfiles)
	assert.Len(t, payload.Profiles, 4)
	assert.Empty(t, payload.Warnings)

	// Followers point at the root, following points away from it.
	assert.Contains(t, payload.Relations, models.Relation{
		Platform: "instagram", Source: "fan_a", Target: "root1", Type: models.RelationFollower,
	})
	assert.Contains(t, payload.Relations, models.Relation{
		Platform: "instagram", Source: "root1", Target: "idol_c", Type: models.RelationFollowing,
	})

	assert.Equal(t, 1, payload.Meta.RootsRequested)
	assert.Equal(t, 1, payload.Meta.MaxConcurrency)
	assert.Contains(t, payload.Meta.RootsTimings, "instagram:root1")
}

func TestRunUnsupportedPlatformIsRootLocal(t *testing.T) {
	f := newFixture()
	f.addRoot("root1", []string{"fan_a"}, nil)
	o := f.build(t, testConfig())

	payload, err := o.Run(context.Background(), []models.RootRequest{
		{Platform: "myspace", Username: "ghost"},
		{Platform: "instagram", Username: "root1"},
	})
	require.NoError(t, err)

	assert.Contains(t, warningCodes(payload), models.WarnPlatformUnsupported)
	assert.Equal(t, []string{"instagram:root1"}, payload.RootProfiles)
	assert.Len(t, payload.Profiles, 2)
}

func TestRunMissingSessionLaxSkipsRootOnly(t *testing.T) {
	f := newFixture()
	f.addRoot("root1", []string{"fan_a"}, nil)
	delete(f.resolver, "instagram")
	f.resolver["instagram:tenant1"] = instagramSession()
	o := f.build(t, testConfig())

	payload, err := o.Run(context.Background(), []models.RootRequest{
		{Platform: "instagram", Username: "root1"},
		{Platform: "instagram", Username: "root1", Tenant: "tenant1"},
	})
	require.NoError(t, err)

	codes := warningCodes(payload)
	assert.Contains(t, codes, models.WarnStorageStateMissing)
	assert.Contains(t, codes, models.WarnRootSkipped)
	assert.Equal(t, []string{"instagram:root1"}, payload.RootProfiles)
}

func TestRunMissingSessionStrictAbortsBatch(t *testing.T) {
	f := newFixture()
	f.addRoot("root1", nil, nil)
	delete(f.resolver, "instagram")
	o := f.build(t, testConfig())

	_, err := o.Run(context.Background(), []models.RootRequest{
		{Platform: "instagram", Username: "root1", StrictSessions: true},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeSessionMissing, apperrors.TypeOf(err))
}

func TestRunAdapterFailureIsIsolated(t *testing.T) {
	f := newFixture()
	f.addRoot("broken", nil, nil)
	f.addRoot("healthy", []string{"fan_a"}, nil)
	f.adapter.listErr["broken"] = apperrors.New(apperrors.ErrorTypeNetwork, "tab crashed")
	o := f.build(t, testConfig())

	payload, err := o.Run(context.Background(), []models.RootRequest{
		{Platform: "instagram", Username: "broken"},
		{Platform: "instagram", Username: "healthy"},
	})
	require.NoError(t, err)

	assert.Contains(t, warningCodes(payload), models.WarnPartialFailure)

	// The broken root still contributes what was ingested before the
	// failure, and the healthy root is untouched.
	assert.Contains(t, payload.RootProfiles, "instagram:broken")
	assert.Contains(t, payload.RootProfiles, "instagram:healthy")
	assert.Contains(t, payload.Relations, models.Relation{
		Platform: "instagram", Source: "fan_a", Target: "healthy", Type: models.RelationFollower,
	})
}

func TestRunAdapterPanicIsIsolated(t *testing.T) {
	f := newFixture()
	f.addRoot("volatile", nil, nil)
	f.addRoot("healthy", []string{"fan_a"}, nil)
	f.adapter.panicOn = "volatile"
	o := f.build(t, testConfig())

	payload, err := o.Run(context.Background(), []models.RootRequest{
		{Platform: "instagram", Username: "volatile"},
		{Platform: "instagram", Username: "healthy"},
	})
	require.NoError(t, err)

	assert.Contains(t, warningCodes(payload), models.WarnPartialFailure)
	assert.Contains(t, payload.RootProfiles, "instagram:healthy")
}

func TestRunPersistenceFailureDowngradedToWarning(t *testing.T) {
	f := newFixture()
	f.addRoot("root1", []string{"fan_a"}, nil)
	f.sink.fail = true
	o := f.build(t, testConfig())

	payload, err := o.Run(context.Background(), []models.RootRequest{
		{Platform: "instagram", Username: "root1", Persist: true},
	})
	require.NoError(t, err)

	assert.Contains(t, warningCodes(payload), models.WarnDBWarning)

	// The in-memory graph is unaffected by the sink failure.
	assert.Equal(t, []string{"instagram:root1"}, payload.RootProfiles)
	assert.Len(t, payload.Profiles, 2)
}

func TestRunPersistsWhenRequested(t *testing.T) {
	f := newFixture()
	f.addRoot("root1", []string{"fan_a"}, nil)
	o := f.build(t, testConfig())

	_, err := o.Run(context.Background(), []models.RootRequest{
		{Platform: "instagram", Username: "root1", Persist: true},
	})
	require.NoError(t, err)

	assert.Len(t, f.sink.profiles, 2)
	require.Len(t, f.sink.relations, 1)
	assert.Equal(t, models.RelationFollower, f.sink.relations[0].Type)
}

func TestRunSkipsPersistenceWhenNotRequested(t *testing.T) {
	f := newFixture()
	f.addRoot("root1", []string{"fan_a"}, nil)
	o := f.build(t, testConfig())

	_, err := o.Run(context.Background(), []models.RootRequest{
		{Platform: "instagram", Username: "root1"},
	})
	require.NoError(t, err)
	assert.Empty(t, f.sink.profiles)
}

func TestRunOverlappingRootsMergeProfiles(t *testing.T) {
	f := newFixture()
	f.addRoot("root1", []string{"shared_fan"}, nil)
	f.addRoot("root2", []string{"shared_fan"}, nil)
	o := f.build(t, testConfig())

	payload, err := o.Run(context.Background(), []models.RootRequest{
		{Platform: "instagram", Username: "root1"},
		{Platform: "instagram", Username: "root2"},
	})
	require.NoError(t, err)

	var shared *models.ProfilePayload
	for i := range payload.Profiles {
		if payload.Profiles[i].Username == "shared_fan" {
			shared = &payload.Profiles[i]
		}
	}
	require.NotNil(t, shared)
	assert.Equal(t, []string{"instagram:root1", "instagram:root2"}, shared.Sources)

	assert.Len(t, payload.Relations, 2)
}

func TestRunBoundsConcurrency(t *testing.T) {
	f := newFixture()
	for i := 0; i < 5; i++ {
		f.addRoot(fmt.Sprintf("root%d", i), []string{"fan_a"}, nil)
	}

	var inFlight, maxSeen int32
	f.adapter.inFlight = &inFlight
	f.adapter.maxSeen = &maxSeen

	cfg := testConfig()
	cfg.Scraper.MaxConcurrency = 2
	o := f.build(t, cfg)

	var requests []models.RootRequest
	for i := 0; i < 5; i++ {
		requests = append(requests, models.RootRequest{Platform: "instagram", Username: fmt.Sprintf("root%d", i)})
	}

	payload, err := o.Run(context.Background(), requests)
	require.NoError(t, err)

	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(2))
	assert.Len(t, payload.RootProfiles, 5)
	assert.Equal(t, 2, payload.Meta.MaxConcurrency)
}

func TestRelationEdgeDirections(t *testing.T) {
	follower := relationEdges("p", "root", "other", models.RelationFollower)
	require.Len(t, follower, 1)
	assert.Equal(t, "other", follower[0].Source)
	assert.Equal(t, "root", follower[0].Target)

	following := relationEdges("p", "root", "other", models.RelationFollowing)
	require.Len(t, following, 1)
	assert.Equal(t, "root", following[0].Source)

	friend := relationEdges("p", "root", "other", models.RelationFriend)
	assert.Len(t, friend, 2)

	commented := relationEdges("p", "root", "other", models.RelationCommented)
	require.Len(t, commented, 1)
	assert.Equal(t, "root", commented[0].Target)

	assert.Nil(t, relationEdges("p", "root", "other", models.RelationType("bogus")))
}
