package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facilityops/lottery/internal/lottery"
	"facilityops/lottery/internal/model"
	"facilityops/lottery/internal/repository"
)

func TestLotteryService_RunConfirmCancel(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	view, err := f.svc.AddSource(ctx, testScope, "u-1", model.PoolTour, model.InvitationUp, 12)
	require.NoError(t, err)
	assert.False(t, view.DraftValid, "group target without an id resolves to nobody")
	assert.NotEmpty(t, view.DraftProblem)

	view, err = f.svc.SetTarget(ctx, testScope, "u-1", groupTarget("G"))
	require.NoError(t, err)
	assert.True(t, view.DraftValid)
	assert.Equal(t, "12 Up from the Tour pool, distributed to the Closers group by the Equal method.",
		view.DraftDescription.String())

	view, err = f.svc.QueueRule(ctx, testScope, "u-1")
	require.NoError(t, err)
	require.Len(t, view.Rules, 1)
	assert.Equal(t, model.RuleStatusPending, view.Rules[0].Status)
	assert.Empty(t, view.Draft.Sources, "draft resets after queueing")

	_, err = f.svc.Confirm(ctx, testScope, "u-1")
	assert.ErrorIs(t, err, ErrRunNotCompleted)

	var events []lottery.Event
	view, err = f.svc.Run(ctx, testScope, "u-1", func(ev lottery.Event) { events = append(events, ev) })
	require.NoError(t, err)
	assert.True(t, view.Completed)
	require.Len(t, events, 15, "started, 12 deals, completed, run completed")
	assert.Equal(t, lottery.EventRuleStarted, events[0].Type)
	assert.Equal(t, lottery.EventRunCompleted, events[14].Type)

	rule := view.Rules[0]
	assert.Equal(t, 12, rule.Drawn)
	assert.Len(t, rule.Assignments["X"], 6)
	assert.Len(t, rule.Assignments["Y"], 6)

	pkg, err := f.svc.Confirm(ctx, testScope, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 12, pkg.Assignments.RecordCount())
	assert.Equal(t, "u-1", pkg.CreatedBy)
	assert.Equal(t, model.RuleStatusConfirmed, pkg.Rules[0].Status)

	assert.Equal(t, map[model.RecordStatus]int{
		model.RecordStatusAssigned:  12,
		model.RecordStatusAvailable: 3,
	}, f.statusCounts(t))

	history, err := f.svc.History(ctx, testScope)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, pkg.ID, history[0].ID)

	session, err := f.svc.Session(ctx, testScope, "u-1")
	require.NoError(t, err)
	assert.Empty(t, session.Rules, "confirmed rules leave the queue")

	require.Eventually(t, func() bool {
		pool, err := f.svc.Pool(ctx, testScope)
		return err == nil && pool.Remaining(model.PoolTour)[model.InvitationUp] == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancelled, err := f.svc.CancelPackage(ctx, testScope, "u-1", pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, pkg.ID, cancelled.ID)
	assert.Equal(t, map[model.RecordStatus]int{model.RecordStatusAvailable: 15}, f.statusCounts(t))

	history, err = f.svc.History(ctx, testScope)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = f.svc.CancelPackage(ctx, testScope, "u-1", pkg.ID)
	assert.ErrorIs(t, err, ErrPackageNotFound)

	successes, _, failures := f.notifier.counts()
	assert.Equal(t, 2, successes)
	assert.Zero(t, failures)
}

func TestLotteryService_RunsAreSequentiallyExclusive(t *testing.T) {
	f := newFixture(t)
	f.queue(t, "u-1", 8, groupTarget("G"))
	f.queue(t, "u-1", 10, model.TargetSpec{Type: model.TargetTeam, ID: "Z"})

	view, err := f.svc.Run(t.Context(), testScope, "u-1", nil)
	require.NoError(t, err)
	require.Len(t, view.Rules, 2)
	assert.Equal(t, 8, view.Rules[0].Drawn)
	assert.Equal(t, 7, view.Rules[1].Drawn)
	assert.True(t, view.Rules[1].Shortfall())

	seen := map[uuid.UUID]bool{}
	for _, id := range lottery.MergeAssignments(view.Rules).RecordIDs() {
		assert.False(t, seen[id], "record %s drawn twice", id)
		seen[id] = true
	}

	_, warnings, _ := f.notifier.counts()
	assert.Equal(t, 1, warnings, "shortfall is reported")
}

func TestLotteryService_ScopeBusy(t *testing.T) {
	f := newFixture(t)
	f.queue(t, "u-1", 2, groupTarget("G"))
	require.NoError(t, f.store.Set(t.Context(), "lottery:lock:"+testScope.Key(), []byte("someone-else"), time.Minute))

	_, err := f.svc.Run(t.Context(), testScope, "u-1", nil)
	assert.ErrorIs(t, err, ErrScopeBusy)

	_, err = f.svc.CancelPackage(t.Context(), testScope, "u-1", uuid.New())
	assert.ErrorIs(t, err, ErrScopeBusy)

	held, err := f.store.Get(t.Context(), "lottery:lock:"+testScope.Key())
	require.NoError(t, err)
	assert.Equal(t, []byte("someone-else"), held, "a refused caller leaves the lock alone")
}

func TestLotteryService_LockReleasedAfterRun(t *testing.T) {
	f := newFixture(t)
	f.queue(t, "u-1", 2, groupTarget("G"))

	_, err := f.svc.Run(t.Context(), testScope, "u-1", nil)
	require.NoError(t, err)

	ok, err := f.store.Exists(t.Context(), "lottery:lock:"+testScope.Key())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLotteryService_ConfirmAfterRecordTaken(t *testing.T) {
	f := newFixture(t)
	f.queue(t, "u-1", 15, groupTarget("G"))

	view, err := f.svc.Run(t.Context(), testScope, "u-1", nil)
	require.NoError(t, err)
	taken := view.Rules[0].Assignments["X"][0].ID

	_, err = f.recordSvc.UpdateStatus(t.Context(), taken, model.RecordStatusReserved)
	require.NoError(t, err)

	_, err = f.svc.Confirm(t.Context(), testScope, "u-1")
	assert.ErrorIs(t, err, ErrRecordsChanged)
	assert.ErrorIs(t, err, repository.ErrRecordsUnavailable)

	assert.Equal(t, map[model.RecordStatus]int{
		model.RecordStatusAvailable: 14,
		model.RecordStatusReserved:  1,
	}, f.statusCounts(t), "nothing was committed")

	session, err := f.svc.Session(t.Context(), testScope, "u-1")
	require.NoError(t, err)
	assert.True(t, session.Completed, "session survives a failed confirm")

	_, _, failures := f.notifier.counts()
	assert.Equal(t, 1, failures)
	entries := f.logs.FilterMessage("lottery package commit failed").All()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].ContextMap()["record_ids"], 15)
}

func TestLotteryService_DiscardRun(t *testing.T) {
	f := newFixture(t)
	f.queue(t, "u-1", 4, groupTarget("G"))

	_, err := f.svc.Run(t.Context(), testScope, "u-1", nil)
	require.NoError(t, err)

	view, err := f.svc.DiscardRun(t.Context(), testScope, "u-1")
	require.NoError(t, err)
	require.Len(t, view.Rules, 1)
	assert.Equal(t, model.RuleStatusPending, view.Rules[0].Status)
	assert.Nil(t, view.Rules[0].Assignments)
	assert.False(t, view.Completed)

	_, err = f.svc.Confirm(t.Context(), testScope, "u-1")
	assert.ErrorIs(t, err, ErrRunNotCompleted)
}

func TestLotteryService_CancelledRunKeepsNothing(t *testing.T) {
	f := newFixture(t)
	f.queue(t, "u-1", 4, groupTarget("G"))

	ctx, cancel := context.WithCancel(t.Context())
	_, err := f.svc.Run(ctx, testScope, "u-1", func(ev lottery.Event) {
		if ev.Type == lottery.EventDealt {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)

	view, err := f.svc.Session(t.Context(), testScope, "u-1")
	require.NoError(t, err)
	assert.Equal(t, model.RuleStatusPending, view.Rules[0].Status)
	assert.False(t, view.Running)
}

func TestLotteryService_SessionEdits(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	view, err := f.svc.AddSource(ctx, testScope, "u-1", model.PoolTour, model.InvitationUp, 3)
	require.NoError(t, err)
	sourceID := view.Draft.Sources[0].ID

	_, err = f.svc.AddSource(ctx, testScope, "u-1", model.PoolTour, model.InvitationUp, 0)
	assert.ErrorIs(t, err, lottery.ErrInvalidSource)

	_, err = f.svc.SetMethod(ctx, testScope, "u-1", "weighted")
	assert.ErrorIs(t, err, lottery.ErrInvalidMethod)

	_, err = f.svc.QueueRule(ctx, testScope, "u-1")
	assert.ErrorIs(t, err, lottery.ErrTargetUnresolved)

	view, err = f.svc.RemoveSource(ctx, testScope, "u-1", sourceID)
	require.NoError(t, err)
	assert.Empty(t, view.Draft.Sources)

	_, err = f.svc.RemoveSource(ctx, testScope, "u-1", sourceID)
	assert.ErrorIs(t, err, ErrSourceNotFound)

	_, err = f.svc.DeleteRule(ctx, testScope, "u-1", uuid.New())
	assert.ErrorIs(t, err, ErrRuleNotFound)

	other, err := f.svc.Session(ctx, testScope, "u-2")
	require.NoError(t, err)
	assert.Empty(t, other.Draft.Sources, "sessions are per user")

	_, err = f.svc.Run(ctx, testScope, "u-2", nil)
	assert.ErrorIs(t, err, ErrEmptyQueue)

	_, err = f.svc.Session(ctx, model.Scope{Date: testScope.Date}, "u-1")
	assert.ErrorIs(t, err, ErrScopeIncomplete)
}

type failingHistoryRepo struct {
	repository.LotteryRepository
	err error
}

func (r failingHistoryRepo) GetHistory(context.Context, model.Scope) (*model.LotteryHistory, error) {
	return nil, r.err
}

func TestLotteryService_HistoryReportsFetchError(t *testing.T) {
	f := newFixture(t)
	down := errors.New("database is down")
	lotteries := failingHistoryRepo{LotteryRepository: f.lotteries, err: down}

	registry := NewScopeRegistry(f.records, repository.NewPGTeamRepository(f.db), lotteries, nil, ScopeRegistryConfig{
		Random: lottery.NewSeededRandom(7),
	}, f.log)
	t.Cleanup(registry.Close)
	svc := NewLotteryService(registry, lotteries, f.store, nil, f.notifier, LotteryServiceConfig{
		SessionTTL: time.Hour,
		LockTTL:    time.Minute,
	}, f.log)

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	_, err := svc.History(ctx, testScope)
	require.ErrorIs(t, err, down)
	assert.NoError(t, ctx.Err(), "the error is returned instead of waiting")

	err = svc.WatchHistory(ctx, testScope, func([]model.LotteryPackage) error {
		t.Fatal("no history is delivered while the fetch fails")
		return nil
	})
	require.ErrorIs(t, err, down)
}
