package model

import (
	"time"

	"github.com/google/uuid"
)

type Method string

const (
	MethodEqual  Method = "equal"
	MethodRandom Method = "random"
)

func (m Method) Valid() bool {
	return m == MethodEqual || m == MethodRandom
}

type TargetType string

const (
	TargetGroup       TargetType = "group"
	TargetTeam        TargetType = "team"
	TargetCustomTeams TargetType = "customTeams"
	TargetAll         TargetType = "all"
)

// AllTeamsGroupID is the group id that selects every closing team of the facility.
const AllTeamsGroupID = "all"

type RuleStatus string

const (
	RuleStatusPending   RuleStatus = "pending"
	RuleStatusCompleted RuleStatus = "completed"
	RuleStatusConfirmed RuleStatus = "confirmed"
)

// SourceSpec asks for Quantity records of one (pool, type) bucket.
type SourceSpec struct {
	ID       uuid.UUID      `json:"id"`
	Pool     PoolType       `json:"pool"`
	Type     InvitationType `json:"type"`
	Quantity int            `json:"quantity"`
}

// TargetSpec names the teams a rule distributes to. ID is used by group and
// team targets, TeamIDs by customTeams.
type TargetSpec struct {
	Type    TargetType `json:"type"`
	ID      string     `json:"id,omitempty"`
	TeamIDs []string   `json:"team_ids,omitempty"`
}

// Segment is one run of description text. Emphasis marks the parts a
// presentation layer would render in bold.
type Segment struct {
	Text     string `json:"text"`
	Emphasis bool   `json:"emphasis,omitempty"`
}

type Description []Segment

// String joins the segments as plain text.
func (d Description) String() string {
	n := 0
	for _, s := range d {
		n += len(s.Text)
	}
	b := make([]byte, 0, n)
	for _, s := range d {
		b = append(b, s.Text...)
	}
	return string(b)
}

// Assignments maps a team id to the records dealt to it.
type Assignments map[string][]InvitationRecord

// RecordCount is the number of records across all teams.
func (a Assignments) RecordCount() int {
	n := 0
	for _, records := range a {
		n += len(records)
	}
	return n
}

// RecordIDs lists every record id in the map.
func (a Assignments) RecordIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, a.RecordCount())
	for _, records := range a {
		for _, r := range records {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// RuleDraft is the rule being assembled before it is queued.
type RuleDraft struct {
	Sources []SourceSpec `json:"sources"`
	Target  TargetSpec   `json:"target"`
	Method  Method       `json:"method"`
}

// NewRuleDraft returns an empty draft targeting a group with equal distribution.
func NewRuleDraft() RuleDraft {
	return RuleDraft{
		Sources: []SourceSpec{},
		Target:  TargetSpec{Type: TargetGroup},
		Method:  MethodEqual,
	}
}

// Rule is one queued distribution instruction. Assignments stays nil while the
// rule is pending.
type Rule struct {
	ID          uuid.UUID    `json:"id"`
	Sources     []SourceSpec `json:"sources"`
	Target      TargetSpec   `json:"target"`
	Method      Method       `json:"method"`
	Status      RuleStatus   `json:"status"`
	Description Description  `json:"description"`
	Assignments Assignments  `json:"assignments"`
	Requested   int          `json:"requested"`
	Drawn       int          `json:"drawn"`
}

// Shortfall reports whether execution drew fewer records than requested.
func (r Rule) Shortfall() bool {
	return r.Status != RuleStatusPending && r.Drawn < r.Requested
}

// Session is one user's working state for a scope: the draft and the run queue.
type Session struct {
	Scope     Scope     `json:"scope"`
	UserID    string    `json:"user_id"`
	Draft     RuleDraft `json:"draft"`
	Rules     []Rule    `json:"rules"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Completed reports whether the queue is non-empty and every rule has run.
func (s Session) Completed() bool {
	if len(s.Rules) == 0 {
		return false
	}
	for _, r := range s.Rules {
		if r.Status != RuleStatusCompleted {
			return false
		}
	}
	return true
}

// LotteryPackage is one committed run: the rules as executed and the merged
// team assignments.
type LotteryPackage struct {
	ID          uuid.UUID   `json:"id"`
	CreatedAt   time.Time   `json:"created_at"`
	CreatedBy   string      `json:"created_by"`
	Rules       []Rule      `json:"rules"`
	Assignments Assignments `json:"assignments"`
}
