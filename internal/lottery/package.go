package lottery

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"facilityops/lottery/internal/model"
)

// MergeAssignments concatenates every rule's per-team lists, in rule order.
func MergeAssignments(rules []model.Rule) model.Assignments {
	merged := model.Assignments{}
	for _, r := range rules {
		for teamID, records := range r.Assignments {
			merged[teamID] = append(merged[teamID], records...)
		}
	}
	return merged
}

// NewPackage snapshots a completed run. Rules are marked confirmed and the
// record copies carry their committed assignment.
func NewPackage(rules []model.Rule, dir *Directory, createdBy string, now time.Time) (model.LotteryPackage, error) {
	merged := MergeAssignments(rules)
	if merged.RecordCount() == 0 {
		return model.LotteryPackage{}, ErrNothingToConfirm
	}

	pkg := model.LotteryPackage{
		ID:        uuid.New(),
		CreatedAt: now.UTC(),
		CreatedBy: createdBy,
		Rules:     make([]model.Rule, len(rules)),
	}
	for i, r := range rules {
		r.Status = model.RuleStatusConfirmed
		r.Sources = slices.Clone(r.Sources)
		pkg.Rules[i] = r
	}

	pkg.Assignments = make(model.Assignments, len(merged))
	for teamID, records := range merged {
		teamName := teamID
		if t, ok := dir.Team(teamID); ok {
			teamName = t.Name
		}
		out := make([]model.InvitationRecord, len(records))
		for i, r := range records {
			id, name, pkgID := teamID, teamName, pkg.ID
			r.Status = model.RecordStatusAssigned
			r.AssignedTeamID = &id
			r.AssignedTeamName = &name
			r.PackageID = &pkgID
			out[i] = r
		}
		pkg.Assignments[teamID] = out
	}
	return pkg, nil
}
