package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"facilityops/lottery/internal/lottery"
	"facilityops/lottery/internal/model"
	"facilityops/lottery/internal/repository"
)

const sessionKeyPrefix = "lottery:session:"

// SessionView is a session plus what a client needs to render the draft.
type SessionView struct {
	model.Session
	DraftDescription model.Description `json:"draft_description"`
	DraftValid       bool              `json:"draft_valid"`
	DraftProblem     string            `json:"draft_problem,omitempty"`
	Completed        bool              `json:"completed"`
	Running          bool              `json:"running"`
}

type LotteryService interface {
	Session(ctx context.Context, scope model.Scope, userID string) (*SessionView, error)
	AddSource(ctx context.Context, scope model.Scope, userID string, pool model.PoolType, typ model.InvitationType, quantity int) (*SessionView, error)
	RemoveSource(ctx context.Context, scope model.Scope, userID string, sourceID uuid.UUID) (*SessionView, error)
	SetTarget(ctx context.Context, scope model.Scope, userID string, target model.TargetSpec) (*SessionView, error)
	SetMethod(ctx context.Context, scope model.Scope, userID string, method model.Method) (*SessionView, error)
	QueueRule(ctx context.Context, scope model.Scope, userID string) (*SessionView, error)
	DeleteRule(ctx context.Context, scope model.Scope, userID string, ruleID uuid.UUID) (*SessionView, error)
	ResetDraft(ctx context.Context, scope model.Scope, userID string) (*SessionView, error)
	// DiscardRun stops an active run of this user and drops every executed
	// result, returning the queue to pending.
	DiscardRun(ctx context.Context, scope model.Scope, userID string) (*SessionView, error)

	Pool(ctx context.Context, scope model.Scope) (*lottery.PoolView, error)
	// WatchPool calls fn with the current view and again after every change
	// until ctx ends.
	WatchPool(ctx context.Context, scope model.Scope, fn func(lottery.PoolView) error) error
	History(ctx context.Context, scope model.Scope) ([]model.LotteryPackage, error)
	WatchHistory(ctx context.Context, scope model.Scope, fn func([]model.LotteryPackage) error) error

	// Run executes the whole queue in order, streaming reveal events to emit.
	Run(ctx context.Context, scope model.Scope, userID string, emit func(lottery.Event)) (*SessionView, error)
	Confirm(ctx context.Context, scope model.Scope, userID string) (*model.LotteryPackage, error)
	CancelPackage(ctx context.Context, scope model.Scope, userID string, packageID uuid.UUID) (*model.LotteryPackage, error)
}

type LotteryServiceConfig struct {
	SessionTTL    time.Duration
	LockTTL       time.Duration
	CommitRetries int
}

type lotteryService struct {
	registry   *ScopeRegistry
	lotteries  repository.LotteryRepository
	stateStore repository.StateStore
	feed       repository.ChangeFeed
	notifier   Notifier
	cfg        LotteryServiceConfig
	logger     *zap.Logger
	now        func() time.Time

	mu   sync.Mutex
	runs map[string]context.CancelFunc
}

func NewLotteryService(
	registry *ScopeRegistry,
	lotteries repository.LotteryRepository,
	stateStore repository.StateStore,
	feed repository.ChangeFeed,
	notifier Notifier,
	cfg LotteryServiceConfig,
	logger *zap.Logger,
) LotteryService {
	return &lotteryService{
		registry:   registry,
		lotteries:  lotteries,
		stateStore: stateStore,
		feed:       feed,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger.Named("lottery"),
		now:        time.Now,
		runs:       make(map[string]context.CancelFunc),
	}
}

func sessionKey(scope model.Scope, userID string) string {
	return sessionKeyPrefix + userID + ":" + scope.Key()
}

func (s *lotteryService) loadSession(ctx context.Context, scope model.Scope, userID string) (*model.Session, error) {
	data, err := s.stateStore.Get(ctx, sessionKey(scope, userID))
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	session := &model.Session{Scope: scope, UserID: userID, Draft: model.NewRuleDraft(), Rules: []model.Rule{}}
	if data == nil {
		return session, nil
	}
	if err := json.Unmarshal(data, session); err != nil {
		s.logger.Warn("discarding unreadable session",
			zap.String("scope", scope.Key()), zap.String("user_id", userID), zap.Error(err))
		return &model.Session{Scope: scope, UserID: userID, Draft: model.NewRuleDraft(), Rules: []model.Rule{}}, nil
	}
	if session.Rules == nil {
		session.Rules = []model.Rule{}
	}
	return session, nil
}

func (s *lotteryService) saveSession(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.stateStore.Set(ctx, sessionKey(session.Scope, session.UserID), data, s.cfg.SessionTTL); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// withScope acquires scope and waits for its first pool snapshot.
func (s *lotteryService) withScope(ctx context.Context, scope model.Scope, fn func(sc *ScopeContext) error) error {
	sc, release, err := s.registry.Acquire(scope)
	if err != nil {
		return err
	}
	defer release()
	select {
	case <-sc.Pool.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}
	return fn(sc)
}

func (s *lotteryService) view(session *model.Session, dir *lottery.Directory) *SessionView {
	b := lottery.NewBuilder(session, dir)
	v := &SessionView{
		Session:          *session,
		DraftDescription: lottery.Describe(session.Draft, dir),
		Completed:        session.Completed(),
		Running:          s.isRunning(session.Scope, session.UserID),
	}
	if err := b.Validate(); err != nil {
		v.DraftProblem = err.Error()
	} else {
		v.DraftValid = true
	}
	return v
}

// editSession loads the session, applies edit with a builder and saves it.
func (s *lotteryService) editSession(ctx context.Context, scope model.Scope, userID string, edit func(*lottery.Builder, *model.Session) error) (*SessionView, error) {
	var out *SessionView
	err := s.withScope(ctx, scope, func(sc *ScopeContext) error {
		session, err := s.loadSession(ctx, scope, userID)
		if err != nil {
			return err
		}
		dir := sc.Pool.Directory()
		if edit != nil {
			if err := edit(lottery.NewBuilder(session, dir), session); err != nil {
				return err
			}
			if err := s.saveSession(ctx, session); err != nil {
				return err
			}
		}
		out = s.view(session, dir)
		return nil
	})
	return out, err
}

func (s *lotteryService) Session(ctx context.Context, scope model.Scope, userID string) (*SessionView, error) {
	return s.editSession(ctx, scope, userID, nil)
}

func (s *lotteryService) AddSource(ctx context.Context, scope model.Scope, userID string, pool model.PoolType, typ model.InvitationType, quantity int) (*SessionView, error) {
	return s.editSession(ctx, scope, userID, func(b *lottery.Builder, _ *model.Session) error {
		_, err := b.AddSource(pool, typ, quantity)
		return err
	})
}

func (s *lotteryService) RemoveSource(ctx context.Context, scope model.Scope, userID string, sourceID uuid.UUID) (*SessionView, error) {
	return s.editSession(ctx, scope, userID, func(b *lottery.Builder, _ *model.Session) error {
		if !b.RemoveSource(sourceID) {
			return ErrSourceNotFound
		}
		return nil
	})
}

func (s *lotteryService) SetTarget(ctx context.Context, scope model.Scope, userID string, target model.TargetSpec) (*SessionView, error) {
	return s.editSession(ctx, scope, userID, func(b *lottery.Builder, _ *model.Session) error {
		return b.SetTarget(target)
	})
}

func (s *lotteryService) SetMethod(ctx context.Context, scope model.Scope, userID string, method model.Method) (*SessionView, error) {
	return s.editSession(ctx, scope, userID, func(b *lottery.Builder, _ *model.Session) error {
		return b.SetMethod(method)
	})
}

func (s *lotteryService) QueueRule(ctx context.Context, scope model.Scope, userID string) (*SessionView, error) {
	return s.editSession(ctx, scope, userID, func(b *lottery.Builder, _ *model.Session) error {
		if s.isRunning(scope, userID) {
			return lottery.ErrRunInProgress
		}
		_, err := b.Queue()
		return err
	})
}

func (s *lotteryService) DeleteRule(ctx context.Context, scope model.Scope, userID string, ruleID uuid.UUID) (*SessionView, error) {
	return s.editSession(ctx, scope, userID, func(b *lottery.Builder, _ *model.Session) error {
		if s.isRunning(scope, userID) {
			return lottery.ErrRunInProgress
		}
		if !b.DeleteRule(ruleID) {
			return ErrRuleNotFound
		}
		return nil
	})
}

func (s *lotteryService) ResetDraft(ctx context.Context, scope model.Scope, userID string) (*SessionView, error) {
	return s.editSession(ctx, scope, userID, func(b *lottery.Builder, _ *model.Session) error {
		b.Reset()
		return nil
	})
}

func (s *lotteryService) DiscardRun(ctx context.Context, scope model.Scope, userID string) (*SessionView, error) {
	s.cancelRun(scope, userID)
	return s.editSession(ctx, scope, userID, func(_ *lottery.Builder, session *model.Session) error {
		for i := range session.Rules {
			resetRule(&session.Rules[i])
		}
		return nil
	})
}

func resetRule(r *model.Rule) {
	r.Status = model.RuleStatusPending
	r.Assignments = nil
	r.Drawn = 0
}

func (s *lotteryService) Pool(ctx context.Context, scope model.Scope) (*lottery.PoolView, error) {
	var view lottery.PoolView
	err := s.withScope(ctx, scope, func(sc *ScopeContext) error {
		view = sc.Pool.View()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *lotteryService) WatchPool(ctx context.Context, scope model.Scope, fn func(lottery.PoolView) error) error {
	return s.withScope(ctx, scope, func(sc *ScopeContext) error {
		for {
			changed := sc.Pool.Changed()
			if err := fn(sc.Pool.View()); err != nil {
				return err
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return nil
			}
		}
	})
}

func (s *lotteryService) History(ctx context.Context, scope model.Scope) ([]model.LotteryPackage, error) {
	var list []model.LotteryPackage
	err := s.withScope(ctx, scope, func(sc *ScopeContext) error {
		if err := waitFor(ctx, sc.History.Ready()); err != nil {
			return err
		}
		if err := sc.History.Err(); err != nil {
			return fmt.Errorf("load lottery history: %w", err)
		}
		list = sc.History.List()
		return nil
	})
	return list, err
}

func (s *lotteryService) WatchHistory(ctx context.Context, scope model.Scope, fn func([]model.LotteryPackage) error) error {
	return s.withScope(ctx, scope, func(sc *ScopeContext) error {
		if err := waitFor(ctx, sc.History.Ready()); err != nil {
			return err
		}
		if err := sc.History.Err(); err != nil {
			return fmt.Errorf("load lottery history: %w", err)
		}
		for {
			changed := sc.History.Changed()
			if err := fn(sc.History.List()); err != nil {
				return err
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return nil
			}
		}
	})
}

func waitFor(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runKey(scope model.Scope, userID string) string {
	return userID + ":" + scope.Key()
}

func (s *lotteryService) isRunning(scope model.Scope, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[runKey(scope, userID)]
	return ok
}

func (s *lotteryService) cancelRun(scope model.Scope, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.runs[runKey(scope, userID)]; ok {
		cancel()
	}
}

func (s *lotteryService) Run(ctx context.Context, scope model.Scope, userID string, emit func(lottery.Event)) (*SessionView, error) {
	if !scope.Complete() {
		return nil, ErrScopeIncomplete
	}
	session, err := s.loadSession(ctx, scope, userID)
	if err != nil {
		return nil, err
	}
	if len(session.Rules) == 0 {
		return nil, ErrEmptyQueue
	}

	lock, err := acquireScopeLock(ctx, s.stateStore, scope, userID, s.cfg.LockTTL, s.logger)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	key := runKey(scope, userID)
	s.mu.Lock()
	s.runs[key] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.runs, key)
		s.mu.Unlock()
	}()

	var out *SessionView
	err = s.withScope(ctx, scope, func(sc *ScopeContext) error {
		if err := sc.Sync(ctx); err != nil {
			return fmt.Errorf("load invitation pool: %w", err)
		}
		dir := sc.Pool.Directory()
		completed, err := sc.Orchestrator.RunAll(runCtx, session.Rules, sc.Pool.View(), dir, emit)
		if err != nil {
			return err
		}

		// Draft edits made during the reveal are kept.
		latest, err := s.loadSession(ctx, scope, userID)
		if err != nil {
			return err
		}
		latest.Rules = completed
		if err := s.saveSession(ctx, latest); err != nil {
			return err
		}

		for i, r := range completed {
			if r.Shortfall() {
				s.notifier.Warning(ctx, fmt.Sprintf("Rule %d drew %d of %d requested invitations; the pool ran short.", i+1, r.Drawn, r.Requested))
			}
		}
		out = s.view(latest, dir)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.notifier.Warning(ctx, "Lottery run cancelled; no results were kept.")
		}
		return nil, err
	}
	return out, nil
}

func (s *lotteryService) Confirm(ctx context.Context, scope model.Scope, userID string) (*model.LotteryPackage, error) {
	if !scope.Complete() {
		return nil, ErrScopeIncomplete
	}
	session, err := s.loadSession(ctx, scope, userID)
	if err != nil {
		return nil, err
	}
	if !session.Completed() {
		return nil, ErrRunNotCompleted
	}

	lock, err := acquireScopeLock(ctx, s.stateStore, scope, userID, s.cfg.LockTTL, s.logger)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	var pkg model.LotteryPackage
	err = s.withScope(ctx, scope, func(sc *ScopeContext) error {
		built, err := lottery.NewPackage(session.Rules, sc.Pool.Directory(), userID, s.now())
		if err != nil {
			return err
		}
		pkg = built

		history, err := s.commitWithRetry(ctx, func() (*model.LotteryHistory, error) {
			return s.lotteries.CommitPackage(ctx, scope, pkg)
		})
		if err != nil {
			s.logReconciliation("lottery package commit failed", scope, pkg, err)
			return err
		}

		sc.ApplyHistory(history)
		s.publish(ctx, scope)
		sc.Refresh()

		session.Rules = []model.Rule{}
		if err := s.saveSession(ctx, session); err != nil {
			// The package is committed; a stale queue only costs the user a reset.
			s.logger.Warn("failed to clear confirmed session", zap.String("package_id", pkg.ID.String()), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrRecordsUnavailable) {
			err = fmt.Errorf("%w: %w", ErrRecordsChanged, err)
		}
		if !errors.Is(err, lottery.ErrNothingToConfirm) {
			s.notifier.Error(ctx, "Lottery results could not be saved.", err)
		}
		return nil, err
	}

	s.notifier.Success(ctx, fmt.Sprintf("Lottery confirmed: %d invitations assigned to %d teams.",
		pkg.Assignments.RecordCount(), len(pkg.Assignments)))
	return &pkg, nil
}

func (s *lotteryService) CancelPackage(ctx context.Context, scope model.Scope, userID string, packageID uuid.UUID) (*model.LotteryPackage, error) {
	if !scope.Complete() {
		return nil, ErrScopeIncomplete
	}
	lock, err := acquireScopeLock(ctx, s.stateStore, scope, userID, s.cfg.LockTTL, s.logger)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	var cancelled *model.LotteryPackage
	err = s.withScope(ctx, scope, func(sc *ScopeContext) error {
		history, err := s.commitWithRetry(ctx, func() (*model.LotteryHistory, error) {
			pkg, history, err := s.lotteries.CancelPackage(ctx, scope, packageID)
			cancelled = pkg
			return history, err
		})
		if errors.Is(err, repository.ErrPackageNotFound) {
			return ErrPackageNotFound
		}
		if err != nil {
			for _, p := range sc.History.List() {
				if p.ID == packageID {
					s.logReconciliation("lottery package cancel failed", scope, p, err)
				}
			}
			return err
		}

		sc.ApplyHistory(history)
		s.publish(ctx, scope)
		sc.Refresh()
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrPackageNotFound) {
			s.notifier.Error(ctx, "Lottery package could not be cancelled.", err)
		}
		return nil, err
	}

	s.logger.Info("lottery package cancelled",
		zap.String("scope", scope.Key()),
		zap.String("package_id", packageID.String()),
		zap.String("user_id", userID))
	s.notifier.Success(ctx, fmt.Sprintf("Lottery package cancelled: %d invitations returned to the pool.",
		cancelled.Assignments.RecordCount()))
	return cancelled, nil
}

// commitWithRetry repeats write while it fails with a version conflict.
func (s *lotteryService) commitWithRetry(ctx context.Context, write func() (*model.LotteryHistory, error)) (*model.LotteryHistory, error) {
	attempts := s.cfg.CommitRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		var h *model.LotteryHistory
		h, err = write()
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrCommitContention, err)
}

func (s *lotteryService) publish(ctx context.Context, scope model.Scope) {
	if s.feed == nil {
		return
	}
	for _, topic := range []repository.ChangeTopic{repository.TopicRecords, repository.TopicHistory} {
		if err := s.feed.Publish(ctx, scope.Key(), topic); err != nil {
			s.logger.Warn("failed to publish change", zap.String("scope", scope.Key()),
				zap.String("topic", string(topic)), zap.Error(err))
		}
	}
}

// logReconciliation records enough to repair a failed write by hand.
func (s *lotteryService) logReconciliation(msg string, scope model.Scope, pkg model.LotteryPackage, err error) {
	ids := pkg.Assignments.RecordIDs()
	recordIDs := make([]string, len(ids))
	for i, id := range ids {
		recordIDs[i] = id.String()
	}
	s.logger.Error(msg,
		zap.String("scope", scope.Key()),
		zap.String("package_id", pkg.ID.String()),
		zap.Strings("record_ids", recordIDs),
		zap.Error(err))
}
