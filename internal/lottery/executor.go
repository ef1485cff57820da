package lottery

import (
	"github.com/google/uuid"

	"facilityops/lottery/internal/model"
)

// ClaimSet holds the ids drawn so far in one run. It is owned by a single run
// and threaded through every Execute call in queue order.
type ClaimSet map[uuid.UUID]struct{}

func (c ClaimSet) Has(id uuid.UUID) bool {
	_, ok := c[id]
	return ok
}

func (c ClaimSet) Claim(id uuid.UUID) { c[id] = struct{}{} }

// Deal is one record handed to one team.
type Deal struct {
	TeamID   string                 `json:"team_id"`
	TeamName string                 `json:"team_name"`
	Record   model.InvitationRecord `json:"record"`
}

// Result is the outcome of executing one rule.
type Result struct {
	Assignments model.Assignments
	Deals       []Deal
	Targets     []model.Team
	Requested   int
	Drawn       int
}

// Shortfall reports whether the pool could not cover the requested quantity.
func (r Result) Shortfall() bool { return r.Drawn < r.Requested }

type Executor struct {
	rnd Random
}

func NewExecutor(rnd Random) *Executor {
	return &Executor{rnd: rnd}
}

// Execute draws the rule's sources from pool, skipping and then extending
// claimed, and distributes the drawn records over the resolved targets. A rule
// without targets draws nothing, so it claims nothing.
func (e *Executor) Execute(rule model.Rule, pool PoolView, claimed ClaimSet, dir *Directory) Result {
	res := Result{Assignments: model.Assignments{}}
	for _, s := range rule.Sources {
		res.Requested += s.Quantity
	}

	res.Targets = dir.Resolve(rule.Target)
	for _, t := range res.Targets {
		res.Assignments[t.ID] = []model.InvitationRecord{}
	}
	if len(res.Targets) == 0 {
		return res
	}

	var drawn []model.InvitationRecord
	for _, s := range rule.Sources {
		var candidates []model.InvitationRecord
		for _, r := range pool.Bucket(s.Pool, s.Type) {
			if !claimed.Has(r.ID) {
				candidates = append(candidates, r)
			}
		}
		Shuffle(e.rnd, candidates)
		take := min(s.Quantity, len(candidates))
		for _, r := range candidates[:take] {
			claimed.Claim(r.ID)
			drawn = append(drawn, r)
		}
	}
	res.Drawn = len(drawn)

	n := len(res.Targets)
	for i, r := range drawn {
		var idx int
		switch rule.Method {
		case model.MethodRandom:
			idx = e.rnd.IntN(n)
		default:
			idx = i % n
		}
		team := res.Targets[idx]
		res.Assignments[team.ID] = append(res.Assignments[team.ID], r)
		res.Deals = append(res.Deals, Deal{TeamID: team.ID, TeamName: team.Name, Record: r})
	}
	return res
}
