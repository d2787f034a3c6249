// Package orchestrator coordinates a multi-root scrape batch: it
// validates the batch, fans roots out under bounded concurrency,
// normalizes what the platform adapters return and funnels everything
// into one aggregator.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/config"
	apperrors "github.com/Fernandogf021207/Scr4per-sub000/pkg/errors"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/graph"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/logger"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/platform"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/pool"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/ratelimit"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/retry"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/scroll"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/session"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/storage"
)

// relationOrder is the sequence of list fetches per root.
var relationOrder = []models.RelationType{
	models.RelationFollower,
	models.RelationFollowing,
	models.RelationFriend,
	models.RelationCommented,
	models.RelationReacted,
}

// Options carries the orchestrator's collaborators. Registry and Config
// are required; Sessions or Pool supplies credentials depending on
// deployment mode; Sink is optional.
type Options struct {
	Config   *config.Config
	Registry *platform.Registry
	Sessions session.Resolver
	Pool     *pool.Manager
	Sink     storage.Sink
	Logger   logger.Logger
}

// Orchestrator runs scrape batches.
type Orchestrator struct {
	cfg      *config.Config
	registry *platform.Registry
	sessions session.Resolver
	pool     *pool.Manager
	sink     storage.Sink
	limiters *ratelimit.PerPlatform
	logger   logger.Logger
}

// New creates an orchestrator from its collaborators.
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, errors.New("orchestrator: config is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("orchestrator: platform registry is required")
	}
	if opts.Sessions == nil && opts.Pool == nil {
		return nil, errors.New("orchestrator: a session resolver or account pool is required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &Orchestrator{
		cfg:      opts.Config,
		registry: opts.Registry,
		sessions: opts.Sessions,
		pool:     opts.Pool,
		sink:     opts.Sink,
		limiters: ratelimit.NewPerPlatformTokenBucket(opts.Config.RateLimit.RequestsPerMinute, opts.Config.RateLimit.BurstSize),
		logger:   log,
	}, nil
}

// event is one deferred aggregator mutation. The aggregator is owned by
// a single collector goroutine; roots only ever emit events.
type event func(*graph.Aggregator)

// Run executes one batch and returns the aggregated payload.
// Validation failures are batch-fatal; per-root failures surface as
// warnings on the payload.
func (o *Orchestrator) Run(ctx context.Context, requests []models.RootRequest) (*models.Payload, error) {
	requests, err := validateBatch(requests, o.cfg.Scraper.MaxRoots)
	if err != nil {
		return nil, err
	}

	maxConcurrency := o.cfg.Scraper.MaxConcurrency
	if maxConcurrency <= 0 || len(requests) == 1 {
		maxConcurrency = 1
	}
	if maxConcurrency > len(requests) {
		maxConcurrency = len(requests)
	}

	o.logger.InfoWithFields("starting batch", map[string]interface{}{
		"roots":           len(requests),
		"max_concurrency": maxConcurrency,
	})

	agg := graph.New()
	for _, req := range requests {
		agg.RegisterRoot(req.Key())
	}

	// From here on the collector goroutine is the aggregator's sole
	// owner.
	events := make(chan event, 4*len(requests))
	var collectorDone sync.WaitGroup
	collectorDone.Add(1)
	go func() {
		defer collectorDone.Done()
		for ev := range events {
			ev(agg)
		}
	}()

	var (
		timingsMu sync.Mutex
		timings   = make(map[string]int64)
	)

	sem := semaphore.NewWeighted(int64(maxConcurrency))
	g, gctx := errgroup.WithContext(ctx)
	for _, req := range requests {
		req := req
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			start := time.Now()
			err := o.processRoot(gctx, req, events)

			timingsMu.Lock()
			timings[req.Key().String()] = time.Since(start).Milliseconds()
			timingsMu.Unlock()
			return err
		})
	}

	runErr := g.Wait()
	close(events)
	collectorDone.Wait()

	if runErr != nil {
		return nil, runErr
	}

	payload := agg.BuildPayload(len(requests))
	payload.Meta.RootsTimings = timings
	payload.Meta.MaxConcurrency = maxConcurrency
	return payload, nil
}

// processRoot runs steps (a)-(e) for one root. A non-nil return is
// batch-fatal; everything root-local is emitted as a warning instead.
func (o *Orchestrator) processRoot(ctx context.Context, req models.RootRequest, events chan<- event) error {
	rootKey := req.Key()
	log := o.logger.WithFields(map[string]interface{}{
		"platform": req.Platform,
		"username": req.Username,
	})
	warn := func(code, format string, args ...interface{}) {
		message := fmt.Sprintf(format, args...)
		log.WarnWithFields("root warning", map[string]interface{}{"code": code, "message": message})
		events <- func(a *graph.Aggregator) { a.AddWarning(code, message) }
	}

	factory, err := o.registry.Resolve(req.Platform)
	if err != nil {
		warn(models.WarnPlatformUnsupported, "%s: %v", rootKey, err)
		return nil
	}

	state, release, err := o.resolveSession(ctx, req)
	if err != nil {
		if req.StrictSessions {
			return fmt.Errorf("strict sessions: %s: %w", rootKey, err)
		}
		warn(models.WarnRootSkipped, "%s: %v", rootKey, err)
		return nil
	}
	if state == nil {
		if req.StrictSessions {
			return apperrors.Newf(apperrors.ErrorTypeSessionMissing, "no session configured for %s", rootKey)
		}
		warn(models.WarnStorageStateMissing, "no session configured for %s", rootKey)
		warn(models.WarnRootSkipped, "%s skipped", rootKey)
		return nil
	}

	rootErr := func() (err error) {
		// A panicking adapter must not take the batch down with it.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("adapter panic: %v", r)
			}
		}()
		return o.collectRoot(ctx, req, factory, state, events, warn, log)
	}()
	if release != nil {
		errMessage := ""
		if rootErr != nil {
			errMessage = rootErr.Error()
		}
		release(rootErr == nil, errMessage)
	}
	if rootErr != nil {
		warn(models.WarnPartialFailure, "%s: %v", rootKey, rootErr)
	}
	return nil
}

// collectRoot fetches the root profile and every relation list,
// feeding the aggregator as items arrive. An error means the root
// contributed whatever was ingested before the failure.
func (o *Orchestrator) collectRoot(ctx context.Context, req models.RootRequest, factory platform.Factory, state *session.State, events chan<- event, warn func(code, format string, args ...interface{}), log logger.Logger) error {
	rootKey := req.Key()

	adapter, err := factory(platform.Options{
		Session: state,
		Scroll:  o.scrollConfig(),
		Retry:   o.retryConfig(log),
		Limiter: o.limiters.For(req.Platform),
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("building adapter: %w", err)
	}

	rawRoot, err := adapter.GetRootProfile(ctx, req.Username)
	if err != nil {
		return fmt.Errorf("fetching root profile: %w", err)
	}
	rootObs, ok := normalizeItem(req.Platform, rawRoot)
	if !ok {
		return fmt.Errorf("root profile for %s has no recognizable username", rootKey)
	}
	events <- func(a *graph.Aggregator) { a.AddRoot(rootObs, rootKey) }

	persister := o.newPersister(req, warn)
	persister.profile(ctx, rootObs)

	for _, relType := range relationOrder {
		collect := platform.RelationCollector(adapter, relType)
		if collect == nil {
			continue
		}

		maxItems := req.MaxItems
		if maxItems <= 0 {
			maxItems = o.cfg.Scraper.DefaultMaxItems
		}

		items, err := collect(ctx, req.Username, maxItems)
		if err != nil {
			if apperrors.TypeOf(err) == apperrors.ErrorTypeUnsupported {
				// Platform-dependent capability, not a failure.
				continue
			}
			return fmt.Errorf("collecting %s list: %w", relType, err)
		}

		for _, item := range items {
			obs, ok := normalizeItem(req.Platform, item)
			if !ok || obs.Username == rootObs.Username {
				continue
			}

			events <- func(a *graph.Aggregator) { a.AddProfile(obs, rootKey) }
			persister.profile(ctx, obs)

			for _, rel := range relationEdges(req.Platform, rootObs.Username, obs.Username, relType) {
				events <- func(a *graph.Aggregator) { a.AddRelation(rel.Platform, rel.Source, rel.Target, rel.Type) }
				persister.relation(ctx, rel)
			}
		}
	}

	return nil
}

// relationEdges applies the fixed edge direction convention: follower,
// commented and reacted edges point at the root; following points away
// from it; friend produces both directions.
func relationEdges(platformName, root, other string, relType models.RelationType) []models.Relation {
	switch relType {
	case models.RelationFollowing:
		return []models.Relation{{Platform: platformName, Source: root, Target: other, Type: relType}}
	case models.RelationFriend:
		return []models.Relation{
			{Platform: platformName, Source: root, Target: other, Type: relType},
			{Platform: platformName, Source: other, Target: root, Type: relType},
		}
	case models.RelationFollower, models.RelationCommented, models.RelationReacted:
		return []models.Relation{{Platform: platformName, Source: other, Target: root, Type: relType}}
	default:
		return nil
	}
}

// resolveSession produces the session for a root, either from the
// session resolver or by checking an account out of the pool. The
// returned release func, when non-nil, must be called once the root
// finishes.
func (o *Orchestrator) resolveSession(ctx context.Context, req models.RootRequest) (*session.State, func(success bool, errMessage string), error) {
	if o.pool != nil {
		account, err := o.pool.Checkout(ctx, req.Platform)
		if err != nil {
			return nil, nil, err
		}
		state := &session.State{
			Platform:     req.Platform,
			Tenant:       req.Tenant,
			StorageState: []byte(account.Credential),
		}
		release := func(success bool, errMessage string) {
			if err := o.pool.Release(ctx, account.ID, success, errMessage); err != nil {
				o.logger.WithError(err).Error("failed to release account")
			}
		}
		return state, release, nil
	}

	state, err := o.sessions.Resolve(req.Platform, req.Tenant)
	if err != nil {
		return nil, nil, err
	}
	return state, nil, nil
}

// scrollConfig maps configured scroll defaults onto the loop config.
func (o *Orchestrator) scrollConfig() scroll.Config {
	sc := o.cfg.Scroll
	return scroll.Config{
		MaxIterations:             sc.MaxIterations,
		Pause:                     sc.Pause.Std(),
		StagnationLimit:           sc.StagnationLimit,
		EmptyLimit:                sc.EmptyLimit,
		Timeout:                   sc.Timeout.Std(),
		Adaptive:                  sc.Adaptive,
		AdaptiveDecayThreshold:    sc.AdaptiveDecayThreshold,
		MinScrollsAfterDecay:      sc.MinScrollsAfterDecay,
		MinScrollsForDirectBottom: sc.MinScrollsForDirectBottom,
		MinTotalForDirectBottom:   sc.MinTotalForDirectBottom,
	}
}

// retryConfig builds a fresh retry policy for one adapter. The
// error-typed backoff keeps per-call state and must not be shared
// across roots.
func (o *Orchestrator) retryConfig(log logger.Logger) retry.Config {
	rc := o.cfg.Retry
	backoff := retry.NewErrorTypeBackoff()
	if rc.BaseDelay > 0 {
		backoff.Default = &retry.ExponentialBackoff{
			InitialDelay: rc.BaseDelay.Std(),
			MaxDelay:     rc.MaxDelay.Std(),
			Multiplier:   rc.Multiplier,
			Jitter:       true,
		}
	}
	return retry.Config{
		MaxAttempts: rc.MaxAttempts,
		Backoff:     backoff,
		Logger:      log,
	}
}

// persister persists one root's contribution, downgrading the first
// failure to a DB_WARNING and going quiet for the rest of the root.
type persister struct {
	sink    storage.Sink
	enabled bool
	failed  bool
	rootKey models.ProfileKey
	warn    func(code, format string, args ...interface{})
}

func (o *Orchestrator) newPersister(req models.RootRequest, warn func(code, format string, args ...interface{})) *persister {
	return &persister{
		sink:    o.sink,
		enabled: req.Persist && o.sink != nil,
		rootKey: req.Key(),
		warn:    warn,
	}
}

func (p *persister) profile(ctx context.Context, obs models.ProfileObservation) {
	if !p.enabled || p.failed {
		return
	}
	if err := p.sink.UpsertProfile(ctx, obs); err != nil {
		p.fail(err)
	}
}

func (p *persister) relation(ctx context.Context, rel models.Relation) {
	if !p.enabled || p.failed {
		return
	}
	if err := p.sink.AddRelationship(ctx, rel); err != nil {
		p.fail(err)
	}
}

func (p *persister) fail(err error) {
	p.failed = true
	p.warn(models.WarnDBWarning, "persistence failed for %s: %v", p.rootKey, err)
}
