package lottery

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"facilityops/lottery/internal/model"
)

// TeamBucket is the set of available records one distributor team brought in.
type TeamBucket struct {
	TeamID   string                   `json:"team_id"`
	TeamName string                   `json:"team_name"`
	Records  []model.InvitationRecord `json:"records"`
}

// PoolView is the derived partition of a scope's available records.
type PoolView struct {
	Scope          model.Scope                                     `json:"scope"`
	Tour           []model.InvitationRecord                        `json:"tour"`
	PrivateVehicle []model.InvitationRecord                        `json:"private_vehicle"`
	Groups         map[model.PoolType][]TeamBucket                 `json:"groups"`
	Counts         map[model.PoolType]map[model.InvitationType]int `json:"remaining"`
}

// EmptyPoolView is the view of a scope with no records or no subscription.
func EmptyPoolView(scope model.Scope) PoolView {
	return BuildPoolView(scope, nil, NewDirectory(scope.FacilityID, nil, nil), zap.NewNop())
}

// BuildPoolView recomputes the whole view from one snapshot. Records outside the
// scope or not available are left out. Grouping only covers known distributor
// teams; records naming any other team are logged and skipped there.
func BuildPoolView(scope model.Scope, records []model.InvitationRecord, dir *Directory, logger *zap.Logger) PoolView {
	view := PoolView{
		Scope:          scope,
		Tour:           []model.InvitationRecord{},
		PrivateVehicle: []model.InvitationRecord{},
		Groups:         make(map[model.PoolType][]TeamBucket, 2),
		Counts: map[model.PoolType]map[model.InvitationType]int{
			model.PoolTour:           emptyCounts(),
			model.PoolPrivateVehicle: emptyCounts(),
		},
	}

	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b model.InvitationRecord) int {
		if c := cmp.Compare(a.DistributorTeamName, b.DistributorTeamName); c != 0 {
			return c
		}
		return cmp.Compare(a.Slot, b.Slot)
	})

	for _, r := range sorted {
		if r.Scope() != scope || r.Status != model.RecordStatusAvailable {
			continue
		}
		switch r.PoolType {
		case model.PoolTour:
			view.Tour = append(view.Tour, r)
		case model.PoolPrivateVehicle:
			view.PrivateVehicle = append(view.PrivateVehicle, r)
		default:
			continue
		}
		if counts := view.Counts[r.PoolType]; r.InvitationType.Valid() {
			counts[r.InvitationType]++
		}
	}

	distributors := dir.DistributorTeams()
	for _, pool := range []model.PoolType{model.PoolTour, model.PoolPrivateVehicle} {
		buckets := make([]TeamBucket, len(distributors))
		index := make(map[string]int, len(distributors))
		for i, t := range distributors {
			buckets[i] = TeamBucket{TeamID: t.ID, TeamName: t.Name, Records: []model.InvitationRecord{}}
			index[t.Name] = i
		}
		for _, r := range view.Records(pool) {
			i, ok := index[r.DistributorTeamName]
			if !ok {
				logger.Warn("skipping record with unknown distributor team",
					zap.String("record_id", r.ID.String()),
					zap.String("team_name", r.DistributorTeamName),
					zap.String("scope", scope.Key()),
				)
				continue
			}
			buckets[i].Records = append(buckets[i].Records, r)
		}
		view.Groups[pool] = buckets
	}
	return view
}

func emptyCounts() map[model.InvitationType]int {
	counts := make(map[model.InvitationType]int, len(model.InvitationTypes))
	for _, t := range model.InvitationTypes {
		counts[t] = 0
	}
	return counts
}

// Records returns the available records of one pool.
func (v PoolView) Records(pool model.PoolType) []model.InvitationRecord {
	switch pool {
	case model.PoolTour:
		return v.Tour
	case model.PoolPrivateVehicle:
		return v.PrivateVehicle
	}
	return nil
}

// Bucket returns the available records matching (pool, type).
func (v PoolView) Bucket(pool model.PoolType, typ model.InvitationType) []model.InvitationRecord {
	var out []model.InvitationRecord
	for _, r := range v.Records(pool) {
		if r.InvitationType == typ {
			out = append(out, r)
		}
	}
	return out
}

// Remaining returns the per-type counts of one pool.
func (v PoolView) Remaining(pool model.PoolType) map[model.InvitationType]int {
	return v.Counts[pool]
}

// Grouped returns the per-distributor-team buckets of one pool.
func (v PoolView) Grouped(pool model.PoolType) []TeamBucket {
	return v.Groups[pool]
}

// Size is the number of available records across both pools.
func (v PoolView) Size() int {
	return len(v.Tour) + len(v.PrivateVehicle)
}
