package lottery

import "facilityops/lottery/internal/model"

// Directory is the team and sales-group layout of one facility.
type Directory struct {
	facilityID string
	teams      []model.Team
	teamByID   map[string]model.Team
	groupByID  map[string]model.SalesGroup
}

// NewDirectory keeps the teams belonging to facilityID, in the given order.
func NewDirectory(facilityID string, teams []model.Team, groups []model.SalesGroup) *Directory {
	d := &Directory{
		facilityID: facilityID,
		teamByID:   make(map[string]model.Team, len(teams)),
		groupByID:  make(map[string]model.SalesGroup, len(groups)),
	}
	for _, g := range groups {
		d.groupByID[g.ID] = g
	}
	for _, t := range teams {
		if t.FacilityID != facilityID {
			continue
		}
		if _, dup := d.teamByID[t.ID]; dup {
			continue
		}
		d.teams = append(d.teams, t)
		d.teamByID[t.ID] = t
	}
	return d
}

func (d *Directory) FacilityID() string { return d.facilityID }

func (d *Directory) Teams() []model.Team { return d.teams }

func (d *Directory) Team(id string) (model.Team, bool) {
	t, ok := d.teamByID[id]
	return t, ok
}

func (d *Directory) Group(id string) (model.SalesGroup, bool) {
	g, ok := d.groupByID[id]
	return g, ok
}

// ClosingTeams returns the facility's teams whose group is not a distributor group.
func (d *Directory) ClosingTeams() []model.Team {
	return d.filter(func(t model.Team) bool {
		g, ok := d.groupByID[t.SalesGroupID]
		return ok && !g.IsDistributor
	})
}

// DistributorTeams returns the facility's teams whose group owns the pool.
func (d *Directory) DistributorTeams() []model.Team {
	return d.filter(func(t model.Team) bool {
		g, ok := d.groupByID[t.SalesGroupID]
		return ok && g.IsDistributor
	})
}

func (d *Directory) TeamsInGroup(groupID string) []model.Team {
	return d.filter(func(t model.Team) bool { return t.SalesGroupID == groupID })
}

// Resolve turns a target into the ordered list of receiving teams. Unknown team
// ids are dropped; duplicates keep their first position.
func (d *Directory) Resolve(target model.TargetSpec) []model.Team {
	switch target.Type {
	case model.TargetAll:
		return d.ClosingTeams()
	case model.TargetGroup:
		if target.ID == "" {
			return nil
		}
		if target.ID == model.AllTeamsGroupID {
			return d.ClosingTeams()
		}
		return d.TeamsInGroup(target.ID)
	case model.TargetTeam:
		if t, ok := d.teamByID[target.ID]; ok {
			return []model.Team{t}
		}
		return nil
	case model.TargetCustomTeams:
		seen := make(map[string]struct{}, len(target.TeamIDs))
		var out []model.Team
		for _, id := range target.TeamIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if t, ok := d.teamByID[id]; ok {
				out = append(out, t)
			}
		}
		return out
	}
	return nil
}

func (d *Directory) filter(keep func(model.Team) bool) []model.Team {
	var out []model.Team
	for _, t := range d.teams {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
