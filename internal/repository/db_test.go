package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"facilityops/lottery/internal/model"
)

var testScope = model.Scope{Date: "2026-10-14", FacilityID: "fac-1"}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
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

func seedRecords(t *testing.T, db *gorm.DB, n int, teamName string) []model.InvitationRecord {
	t.Helper()
	records := make([]model.InvitationRecord, n)
	for i := range records {
		records[i] = model.InvitationRecord{
			ID:                  uuid.New(),
			Date:                testScope.Date,
			FacilityID:          testScope.FacilityID,
			PoolType:            model.PoolTour,
			InvitationType:      model.InvitationUp,
			DistributorTeamID:   strings.ToLower(teamName),
			DistributorTeamName: teamName,
			Slot:                n - i,
			Status:              model.RecordStatusAvailable,
		}
	}
	require.NoError(t, NewPGInvitationRecordRepository(db).CreateBatch(t.Context(), records))
	return records
}

// packageFor builds a committed-shape package giving records to teamID.
func packageFor(teamID string, records ...model.InvitationRecord) model.LotteryPackage {
	pkg := model.LotteryPackage{ID: uuid.New(), CreatedBy: "tester", Assignments: model.Assignments{}}
	name := "Team " + teamID
	for _, r := range records {
		r.AssignedTeamID = &teamID
		r.AssignedTeamName = &name
		pkg.Assignments[teamID] = append(pkg.Assignments[teamID], r)
	}
	return pkg
}
