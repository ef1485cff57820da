package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"facilityops/lottery/internal/lottery"
	"facilityops/lottery/internal/model"
	"facilityops/lottery/internal/repository"
)

// ScopeContext is the live state of one (date, facility) scope shared by every
// caller that acquired it.
type ScopeContext struct {
	Scope        model.Scope
	Pool         *lottery.PoolReader
	History      *lottery.HistoryListener
	Orchestrator *lottery.Orchestrator

	registry *ScopeRegistry
	refresh  chan struct{}
	cancel   context.CancelFunc
	refs     int
}

// WaitReady blocks until both the pool and the history hold a first snapshot.
func (sc *ScopeContext) WaitReady(ctx context.Context) error {
	for _, ready := range []<-chan struct{}{sc.Pool.Ready(), sc.History.Ready()} {
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Refresh asks the watcher for an immediate refetch.
func (sc *ScopeContext) Refresh() {
	select {
	case sc.refresh <- struct{}{}:
	default:
	}
}

// Sync fetches the current records and history and applies them before
// returning, so the caller sees its own and everyone else's committed writes.
func (sc *ScopeContext) Sync(ctx context.Context) error {
	snap := sc.registry.fetchRecords(ctx, sc.Scope)
	if snap.Err != nil {
		return snap.Err
	}
	hist := sc.registry.fetchHistory(ctx, sc.Scope)
	if hist.Err != nil {
		return hist.Err
	}
	sc.Pool.Apply(snap)
	sc.History.Apply(hist)
	return nil
}

// ApplyHistory installs a history this process just wrote.
func (sc *ScopeContext) ApplyHistory(h *model.LotteryHistory) {
	sc.History.Apply(lottery.HistorySnapshot{Packages: h.List(), Version: h.Version})
}

type ScopeRegistryConfig struct {
	Timing       lottery.Timing
	PollInterval time.Duration
	// Random is shared by every scope's executor. Nil uses a crypto-seeded source.
	Random lottery.Random
}

// ScopeRegistry hands out refcounted ScopeContexts. The last release stops the
// scope's watcher and forgets it.
type ScopeRegistry struct {
	records   repository.InvitationRecordRepository
	teams     repository.TeamRepository
	lotteries repository.LotteryRepository
	feed      repository.ChangeFeed
	cfg       ScopeRegistryConfig
	logger    *zap.Logger

	mu     sync.Mutex
	scopes map[string]*ScopeContext
}

func NewScopeRegistry(
	records repository.InvitationRecordRepository,
	teams repository.TeamRepository,
	lotteries repository.LotteryRepository,
	feed repository.ChangeFeed,
	cfg ScopeRegistryConfig,
	logger *zap.Logger,
) *ScopeRegistry {
	if cfg.Random == nil {
		cfg.Random = lottery.NewRandom()
	}
	return &ScopeRegistry{
		records:   records,
		teams:     teams,
		lotteries: lotteries,
		feed:      feed,
		cfg:       cfg,
		logger:    logger.Named("scope"),
		scopes:    make(map[string]*ScopeContext),
	}
}

// Acquire returns the context for scope, starting it if needed. The returned
// release func must be called exactly once; extra calls are ignored.
func (r *ScopeRegistry) Acquire(scope model.Scope) (*ScopeContext, func(), error) {
	if !scope.Complete() {
		return nil, nil, ErrScopeIncomplete
	}
	key := scope.Key()

	r.mu.Lock()
	sc, ok := r.scopes[key]
	if !ok {
		sc = r.start(scope)
		r.scopes[key] = sc
	}
	sc.refs++
	r.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() { r.release(key, sc) })
	}
	return sc, release, nil
}

// Active is the number of live scopes.
func (r *ScopeRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scopes)
}

// Close stops every scope regardless of outstanding references.
func (r *ScopeRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, sc := range r.scopes {
		sc.cancel()
		delete(r.scopes, key)
	}
}

func (r *ScopeRegistry) release(key string, sc *ScopeContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc.refs--
	if sc.refs > 0 {
		return
	}
	sc.cancel()
	if r.scopes[key] == sc {
		delete(r.scopes, key)
	}
}

func (r *ScopeRegistry) start(scope model.Scope) *ScopeContext {
	ctx, cancel := context.WithCancel(context.Background())
	sc := &ScopeContext{
		Scope:        scope,
		Pool:         lottery.NewPoolReader(scope, r.logger),
		History:      lottery.NewHistoryListener(scope, r.logger),
		Orchestrator: lottery.NewOrchestrator(lottery.NewExecutor(r.cfg.Random), r.cfg.Timing),
		registry:     r,
		refresh:      make(chan struct{}, 1),
		cancel:       cancel,
	}

	snaps := make(chan lottery.Snapshot)
	hists := make(chan lottery.HistorySnapshot)
	go sc.Pool.Run(ctx, snaps)
	go sc.History.Run(ctx, hists)
	go r.watch(ctx, sc, snaps, hists)
	return sc
}

// watch refetches on start, on every change notification, on refresh requests
// and on each poll tick.
func (r *ScopeRegistry) watch(ctx context.Context, sc *ScopeContext, snaps chan<- lottery.Snapshot, hists chan<- lottery.HistorySnapshot) {
	key := sc.Scope.Key()
	logger := r.logger.With(zap.String("scope", key))

	var notes <-chan repository.ChangeTopic
	if r.feed != nil {
		ch, err := r.feed.Subscribe(ctx, key)
		if err != nil {
			logger.Warn("change feed unavailable, relying on polling", zap.Error(err))
		} else {
			notes = ch
		}
	}

	var tick <-chan time.Time
	if r.cfg.PollInterval > 0 {
		ticker := time.NewTicker(r.cfg.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	sendRecords := func() {
		select {
		case snaps <- r.fetchRecords(ctx, sc.Scope):
		case <-ctx.Done():
		}
	}
	sendHistory := func() {
		select {
		case hists <- r.fetchHistory(ctx, sc.Scope):
		case <-ctx.Done():
		}
	}

	sendRecords()
	sendHistory()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("scope watcher stopped")
			return
		case topic, ok := <-notes:
			if !ok {
				notes = nil
				continue
			}
			switch topic {
			case repository.TopicRecords:
				sendRecords()
			case repository.TopicHistory:
				sendHistory()
			default:
				sendRecords()
				sendHistory()
			}
		case <-sc.refresh:
			sendRecords()
			sendHistory()
		case <-tick:
			sendRecords()
			sendHistory()
		}
	}
}

func (r *ScopeRegistry) fetchRecords(ctx context.Context, scope model.Scope) lottery.Snapshot {
	teams, err := r.teams.ListByFacility(ctx, scope.FacilityID)
	if err != nil {
		return lottery.Snapshot{Err: err}
	}
	groups, err := r.teams.ListSalesGroups(ctx)
	if err != nil {
		return lottery.Snapshot{Err: err}
	}
	records, err := r.records.ListByScope(ctx, scope)
	if err != nil {
		return lottery.Snapshot{Err: err}
	}
	return lottery.Snapshot{
		Records:   records,
		Directory: lottery.NewDirectory(scope.FacilityID, teams, groups),
	}
}

func (r *ScopeRegistry) fetchHistory(ctx context.Context, scope model.Scope) lottery.HistorySnapshot {
	h, err := r.lotteries.GetHistory(ctx, scope)
	if err != nil {
		return lottery.HistorySnapshot{Err: err}
	}
	return lottery.HistorySnapshot{Packages: h.List(), Version: h.Version}
}
