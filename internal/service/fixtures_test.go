package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"facilityops/lottery/internal/lottery"
	"facilityops/lottery/internal/model"
	"facilityops/lottery/internal/repository"
)

var testScope = model.Scope{Date: "2026-10-14", FacilityID: "fac-1"}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	warnings  []string
	errors    []string
}

func (n *recordingNotifier) Success(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Warning(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, msg)
}

func (n *recordingNotifier) Error(_ context.Context, msg string, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) counts() (int, int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.successes), len(n.warnings), len(n.errors)
}

type fixture struct {
	db        *gorm.DB
	records   repository.InvitationRecordRepository
	lotteries repository.LotteryRepository
	store     repository.StateStore
	feed      repository.ChangeFeed
	registry  *ScopeRegistry
	svc       LotteryService
	recordSvc RecordService
	notifier  *recordingNotifier
	log       *zap.Logger
	logs      *observer.ObservedLogs
	seeded    []model.InvitationRecord
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, model.AutoMigrate(db))
	return db
}

// newFixture seeds a facility with distributor teams Alpha and Bravo, closing
// group G (Xray, Yankee) and closing group H (Zulu), plus 10 Alpha and 5 Bravo
// tour/up records.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)

	groups := []model.SalesGroup{
		{ID: "dist", Name: "Distributors", IsDistributor: true},
		{ID: "G", Name: "Closers"},
		{ID: "H", Name: "Hunters"},
	}
	teams := []model.Team{
		{ID: "A", Name: "Alpha", FacilityID: testScope.FacilityID, SalesGroupID: "dist"},
		{ID: "B", Name: "Bravo", FacilityID: testScope.FacilityID, SalesGroupID: "dist"},
		{ID: "X", Name: "Xray", FacilityID: testScope.FacilityID, SalesGroupID: "G"},
		{ID: "Y", Name: "Yankee", FacilityID: testScope.FacilityID, SalesGroupID: "G"},
		{ID: "Z", Name: "Zulu", FacilityID: testScope.FacilityID, SalesGroupID: "H"},
	}
	require.NoError(t, db.Create(&groups).Error)
	require.NoError(t, db.Create(&teams).Error)

	var seeded []model.InvitationRecord
	for _, spec := range []struct {
		id, name string
		n        int
	}{{"A", "Alpha", 10}, {"B", "Bravo", 5}} {
		for slot := 1; slot <= spec.n; slot++ {
			seeded = append(seeded, model.InvitationRecord{
				ID: uuid.New(), Date: testScope.Date, FacilityID: testScope.FacilityID,
				PoolType: model.PoolTour, InvitationType: model.InvitationUp,
				DistributorTeamID: spec.id, DistributorTeamName: spec.name, Slot: slot,
				Status: model.RecordStatusAvailable,
			})
		}
	}
	records := repository.NewPGInvitationRecordRepository(db)
	require.NoError(t, records.CreateBatch(t.Context(), seeded))

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	teamRepo := repository.NewPGTeamRepository(db)
	lotteries := repository.NewPGLotteryRepository(db)
	store := repository.NewMemoryStateStore()
	feed := repository.NewMemoryChangeFeed()
	notifier := &recordingNotifier{}

	registry := NewScopeRegistry(records, teamRepo, lotteries, feed, ScopeRegistryConfig{
		Random: lottery.NewSeededRandom(7),
	}, log)
	t.Cleanup(registry.Close)

	return &fixture{
		db:        db,
		records:   records,
		lotteries: lotteries,
		store:     store,
		feed:      feed,
		registry:  registry,
		svc: NewLotteryService(registry, lotteries, store, feed, notifier, LotteryServiceConfig{
			SessionTTL:    time.Hour,
			LockTTL:       time.Minute,
			CommitRetries: 2,
		}, log),
		recordSvc: NewRecordService(records, teamRepo, feed, log),
		notifier:  notifier,
		log:       log,
		logs:      logs,
		seeded:    seeded,
	}
}

// queue adds one tour/up source of quantity to the draft, targets target and
// queues the rule.
func (f *fixture) queue(t *testing.T, user string, quantity int, target model.TargetSpec) {
	t.Helper()
	ctx := t.Context()
	_, err := f.svc.AddSource(ctx, testScope, user, model.PoolTour, model.InvitationUp, quantity)
	require.NoError(t, err)
	_, err = f.svc.SetTarget(ctx, testScope, user, target)
	require.NoError(t, err)
	_, err = f.svc.QueueRule(ctx, testScope, user)
	require.NoError(t, err)
}

func (f *fixture) statusCounts(t *testing.T) map[model.RecordStatus]int {
	t.Helper()
	list, err := f.records.ListByScope(t.Context(), testScope)
	require.NoError(t, err)
	counts := map[model.RecordStatus]int{}
	for _, r := range list {
		counts[r.Status]++
	}
	return counts
}

func groupTarget(id string) model.TargetSpec {
	return model.TargetSpec{Type: model.TargetGroup, ID: id}
}
