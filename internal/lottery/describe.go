package lottery

import (
	"strconv"

	"facilityops/lottery/internal/model"
)

var poolNames = map[model.PoolType]string{
	model.PoolTour:           "Tour",
	model.PoolPrivateVehicle: "Private vehicle",
}

var typeNames = map[model.InvitationType]string{
	model.InvitationUp:     "Up",
	model.InvitationOneLeg: "One-leg",
	model.InvitationSingle: "Single",
}

var methodNames = map[model.Method]string{
	model.MethodEqual:  "Equal",
	model.MethodRandom: "Random",
}

func nameOr[K comparable](names map[K]string, k K, raw string) string {
	if n, ok := names[k]; ok {
		return n
	}
	return raw
}

// Describe renders a draft as text segments, for example
// "**12** **Up** from the **Tour** pool, distributed to the **G** group by the **Equal** method."
func Describe(draft model.RuleDraft, dir *Directory) model.Description {
	var d model.Description
	text := func(s string) { d = append(d, model.Segment{Text: s}) }
	bold := func(s string) { d = append(d, model.Segment{Text: s, Emphasis: true}) }

	for i, s := range draft.Sources {
		if i > 0 {
			text(", ")
		}
		bold(strconv.Itoa(s.Quantity))
		text(" ")
		bold(nameOr(typeNames, s.Type, string(s.Type)))
		text(" from the ")
		bold(nameOr(poolNames, s.Pool, string(s.Pool)))
		text(" pool")
	}

	text(", distributed to ")
	t := draft.Target
	switch {
	case t.Type == model.TargetAll || (t.Type == model.TargetGroup && t.ID == model.AllTeamsGroupID):
		bold("all closing teams")
	case t.Type == model.TargetGroup:
		name := "Unknown group"
		if g, ok := dir.Group(t.ID); ok {
			name = g.Name
		}
		text("the ")
		bold(name)
		text(" group")
	case t.Type == model.TargetTeam:
		name := "Unknown team"
		if team, ok := dir.Team(t.ID); ok {
			name = team.Name
		}
		text("the ")
		bold(name)
		text(" team")
	default:
		text("the teams ")
		teams := dir.Resolve(t)
		if len(teams) == 0 {
			bold("none")
		}
		for i, team := range teams {
			if i > 0 {
				text(", ")
			}
			bold(team.Name)
		}
	}

	text(" by the ")
	bold(nameOr(methodNames, draft.Method, string(draft.Method)))
	text(" method.")
	return d
}
