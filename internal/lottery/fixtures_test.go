package lottery

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"facilityops/lottery/internal/model"
)

var testScope = model.Scope{Date: "2026-10-14", FacilityID: "fac-1"}

func testDirectory() *Directory {
	groups := []model.SalesGroup{
		{ID: "dist", Name: "Distributors", IsDistributor: true},
		{ID: "G", Name: "Closers"},
		{ID: "H", Name: "Late shift"},
	}
	teams := []model.Team{
		{ID: "A", Name: "Alpha", FacilityID: "fac-1", SalesGroupID: "dist"},
		{ID: "B", Name: "Bravo", FacilityID: "fac-1", SalesGroupID: "dist"},
		{ID: "X", Name: "Xray", FacilityID: "fac-1", SalesGroupID: "G"},
		{ID: "Y", Name: "Yankee", FacilityID: "fac-1", SalesGroupID: "G"},
		{ID: "Z", Name: "Zulu", FacilityID: "fac-1", SalesGroupID: "H"},
		{ID: "Q", Name: "Quebec", FacilityID: "fac-2", SalesGroupID: "G"},
	}
	return NewDirectory("fac-1", teams, groups)
}

func makeRecords(n int, pool model.PoolType, typ model.InvitationType, teamID, teamName string) []model.InvitationRecord {
	out := make([]model.InvitationRecord, n)
	for i := range out {
		out[i] = model.InvitationRecord{
			ID:                  uuid.New(),
			Date:                testScope.Date,
			FacilityID:          testScope.FacilityID,
			PoolType:            pool,
			InvitationType:      typ,
			DistributorTeamID:   teamID,
			DistributorTeamName: teamName,
			Slot:                i + 1,
			Status:              model.RecordStatusAvailable,
			GuestName:           fmt.Sprintf("guest %s-%d", teamID, i+1),
		}
	}
	return out
}

// scenarioPool is 10 tour/up records from Alpha and 5 from Bravo.
func scenarioPool() PoolView {
	records := append(
		makeRecords(10, model.PoolTour, model.InvitationUp, "A", "Alpha"),
		makeRecords(5, model.PoolTour, model.InvitationUp, "B", "Bravo")...,
	)
	return BuildPoolView(testScope, records, testDirectory(), zap.NewNop())
}

func rule(method model.Method, target model.TargetSpec, sources ...model.SourceSpec) model.Rule {
	return model.Rule{
		ID:      uuid.New(),
		Sources: sources,
		Target:  target,
		Method:  method,
		Status:  model.RuleStatusPending,
	}
}

func source(pool model.PoolType, typ model.InvitationType, qty int) model.SourceSpec {
	return model.SourceSpec{ID: uuid.New(), Pool: pool, Type: typ, Quantity: qty}
}

func recordIDs(a model.Assignments) []uuid.UUID {
	return a.RecordIDs()
}
