package lottery

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"facilityops/lottery/internal/model"
)

func TestBuildPoolView_PartitionsAndGroups(t *testing.T) {
	records := makeRecords(3, model.PoolTour, model.InvitationUp, "B", "Bravo")
	records = append(records, makeRecords(2, model.PoolTour, model.InvitationOneLeg, "A", "Alpha")...)
	records = append(records, makeRecords(4, model.PoolPrivateVehicle, model.InvitationSingle, "A", "Alpha")...)

	assigned := makeRecords(1, model.PoolTour, model.InvitationUp, "A", "Alpha")
	assigned[0].Status = model.RecordStatusAssigned
	other := makeRecords(1, model.PoolTour, model.InvitationUp, "A", "Alpha")
	other[0].Date = "2026-10-15"
	stray := makeRecords(1, model.PoolTour, model.InvitationUp, "?", "Unknown crew")
	records = append(records, assigned[0], other[0], stray[0])

	core, logs := observer.New(zap.WarnLevel)
	view := BuildPoolView(testScope, records, testDirectory(), zap.New(core))

	assert.Len(t, view.Tour, 6, "stray record still belongs to the pool")
	assert.Len(t, view.PrivateVehicle, 4)
	assert.Equal(t, 10, view.Size())
	assert.Equal(t, map[model.InvitationType]int{
		model.InvitationUp: 4, model.InvitationOneLeg: 2, model.InvitationSingle: 0,
	}, view.Remaining(model.PoolTour))
	assert.Len(t, view.Bucket(model.PoolTour, model.InvitationUp), 4)

	// sorted by team name then slot
	assert.Equal(t, "Alpha", view.Tour[0].DistributorTeamName)
	assert.Equal(t, 1, view.Tour[0].Slot)
	assert.Equal(t, 2, view.Tour[1].Slot)

	grouped := view.Grouped(model.PoolTour)
	require.Len(t, grouped, 2)
	assert.Equal(t, "Alpha", grouped[0].TeamName)
	assert.Len(t, grouped[0].Records, 2)
	assert.Len(t, grouped[1].Records, 3)
	assert.Equal(t, 1, logs.FilterMessage("skipping record with unknown distributor team").Len())
}

func TestPoolReader_LastSnapshotWins(t *testing.T) {
	reader := NewPoolReader(testScope, zap.NewNop())
	updates := make(chan Snapshot)
	done := make(chan struct{})
	go func() {
		reader.Run(t.Context(), updates)
		close(done)
	}()

	changed := reader.Changed()
	updates <- Snapshot{Records: makeRecords(3, model.PoolTour, model.InvitationUp, "A", "Alpha"), Directory: testDirectory()}
	waitClosed(t, changed)
	<-reader.Ready()
	assert.Len(t, reader.View().Tour, 3)

	changed = reader.Changed()
	updates <- Snapshot{Records: makeRecords(1, model.PoolTour, model.InvitationUp, "A", "Alpha"), Directory: testDirectory()}
	waitClosed(t, changed)
	assert.Len(t, reader.View().Tour, 1)

	changed = reader.Changed()
	updates <- Snapshot{Err: errors.New("listen failed")}
	waitClosed(t, changed)
	assert.Zero(t, reader.View().Size(), "errors empty the pool")

	close(updates)
	waitClosed(t, done)
}

func TestPoolReader_IncompleteScope(t *testing.T) {
	reader := NewPoolReader(model.Scope{Date: "2026-10-14"}, zap.NewNop())
	reader.Run(t.Context(), nil)
	waitClosed(t, reader.Ready())
	assert.Zero(t, reader.View().Size())
}

func TestHistoryListener_ReplacesWholesale(t *testing.T) {
	l := NewHistoryListener(testScope, zap.NewNop())
	l.Apply(HistorySnapshot{Packages: []model.LotteryPackage{{CreatedBy: "u1"}, {CreatedBy: "u2"}}, Version: 2})
	assert.Len(t, l.List(), 2)
	assert.EqualValues(t, 2, l.Version())

	l.Apply(HistorySnapshot{Err: errors.New("boom")})
	assert.Len(t, l.List(), 2, "errors keep the last good list")

	l.Apply(HistorySnapshot{Packages: []model.LotteryPackage{{CreatedBy: "u1"}}, Version: 1})
	assert.Len(t, l.List(), 2, "older versions are ignored")

	l.Apply(HistorySnapshot{Version: 3})
	assert.Empty(t, l.List())
	assert.NotNil(t, l.List())
	waitClosed(t, l.Ready())
}

func TestHistoryListener_FirstFetchFails(t *testing.T) {
	l := NewHistoryListener(testScope, zap.NewNop())
	boom := errors.New("boom")
	l.Apply(HistorySnapshot{Err: boom})

	waitClosed(t, l.Ready())
	assert.ErrorIs(t, l.Err(), boom)
	assert.Empty(t, l.List())

	l.Apply(HistorySnapshot{Packages: []model.LotteryPackage{{CreatedBy: "u1"}}, Version: 1})
	assert.NoError(t, l.Err(), "a good snapshot clears the error")
	assert.Len(t, l.List(), 1)
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel")
	}
}
