package lottery

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"facilityops/lottery/internal/model"
)

// Timing paces the reveal of a run.
type Timing struct {
	StartDelay      time.Duration
	StepDelay       time.Duration
	CompletionDelay time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		StartDelay:      1000 * time.Millisecond,
		StepDelay:       200 * time.Millisecond,
		CompletionDelay: 1500 * time.Millisecond,
	}
}

type EventType string

const (
	EventRuleStarted   EventType = "rule_started"
	EventDealt         EventType = "dealt"
	EventRuleCompleted EventType = "rule_completed"
	EventRunCompleted  EventType = "run_completed"
)

// Event is one step of a run as seen by a renderer.
type Event struct {
	Type      EventType               `json:"type"`
	RuleID    uuid.UUID               `json:"rule_id"`
	RuleIndex int                     `json:"rule_index"`
	Targets   []model.Team            `json:"targets,omitempty"`
	TeamID    string                  `json:"team_id,omitempty"`
	TeamName  string                  `json:"team_name,omitempty"`
	Record    *model.InvitationRecord `json:"record,omitempty"`
	Requested int                     `json:"requested,omitempty"`
	Drawn     int                     `json:"drawn,omitempty"`
}

// Orchestrator runs a rule queue strictly in order. Only one run may be active
// per orchestrator.
type Orchestrator struct {
	exec    *Executor
	timing  Timing
	running atomic.Bool

	mu      sync.Mutex
	current *uuid.UUID
}

func NewOrchestrator(exec *Executor, timing Timing) *Orchestrator {
	return &Orchestrator{exec: exec, timing: timing}
}

func (o *Orchestrator) Running() bool { return o.running.Load() }

// Current returns the rule being revealed, if any.
func (o *Orchestrator) Current() (uuid.UUID, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return uuid.Nil, false
	}
	return *o.current, true
}

// RunAll executes rules against pool and returns completed copies. The input is
// never modified. When ctx ends mid-run every partial result is dropped and the
// context error is returned.
func (o *Orchestrator) RunAll(ctx context.Context, rules []model.Rule, pool PoolView, dir *Directory, emit func(Event)) ([]model.Rule, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer o.running.Store(false)
	defer o.setCurrent(nil)

	if emit == nil {
		emit = func(Event) {}
	}

	if err := sleep(ctx, o.timing.StartDelay); err != nil {
		return nil, err
	}

	claimed := ClaimSet{}
	out := make([]model.Rule, 0, len(rules))
	for i, rule := range rules {
		rule.Sources = slices.Clone(rule.Sources)
		rule.Status = model.RuleStatusPending
		rule.Assignments = nil

		id := rule.ID
		o.setCurrent(&id)

		res := o.exec.Execute(rule, pool, claimed, dir)
		emit(Event{Type: EventRuleStarted, RuleID: rule.ID, RuleIndex: i, Targets: res.Targets, Requested: res.Requested})

		for _, d := range res.Deals {
			record := d.Record
			emit(Event{Type: EventDealt, RuleID: rule.ID, RuleIndex: i, TeamID: d.TeamID, TeamName: d.TeamName, Record: &record})
			if err := sleep(ctx, o.timing.StepDelay); err != nil {
				return nil, err
			}
		}

		rule.Status = model.RuleStatusCompleted
		rule.Assignments = res.Assignments
		rule.Requested = res.Requested
		rule.Drawn = res.Drawn
		out = append(out, rule)
		emit(Event{Type: EventRuleCompleted, RuleID: rule.ID, RuleIndex: i, Requested: res.Requested, Drawn: res.Drawn})
	}

	if err := sleep(ctx, o.timing.CompletionDelay); err != nil {
		return nil, err
	}
	emit(Event{Type: EventRunCompleted, RuleIndex: len(out)})
	return out, nil
}

func (o *Orchestrator) setCurrent(id *uuid.UUID) {
	o.mu.Lock()
	o.current = id
	o.mu.Unlock()
}

// sleep waits d or until ctx ends, stopping the timer either way.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
