package lottery

import (
	"slices"

	"github.com/google/uuid"

	"facilityops/lottery/internal/model"
)

// Builder edits the draft and run queue of a session. Target resolution is
// checked against dir at validation time, not when the target is set.
type Builder struct {
	session *model.Session
	dir     *Directory
}

func NewBuilder(session *model.Session, dir *Directory) *Builder {
	if session.Draft.Sources == nil {
		session.Draft = model.NewRuleDraft()
	}
	return &Builder{session: session, dir: dir}
}

// AddSource appends a (pool, type, quantity) request to the draft.
func (b *Builder) AddSource(pool model.PoolType, typ model.InvitationType, quantity int) (model.SourceSpec, error) {
	if !pool.Valid() || !typ.Valid() || quantity < 1 {
		return model.SourceSpec{}, ErrInvalidSource
	}
	src := model.SourceSpec{ID: uuid.New(), Pool: pool, Type: typ, Quantity: quantity}
	b.session.Draft.Sources = append(b.session.Draft.Sources, src)
	return src, nil
}

func (b *Builder) RemoveSource(id uuid.UUID) bool {
	before := len(b.session.Draft.Sources)
	b.session.Draft.Sources = slices.DeleteFunc(b.session.Draft.Sources, func(s model.SourceSpec) bool {
		return s.ID == id
	})
	return len(b.session.Draft.Sources) != before
}

func (b *Builder) SetTarget(target model.TargetSpec) error {
	switch target.Type {
	case model.TargetGroup, model.TargetTeam, model.TargetCustomTeams, model.TargetAll:
	default:
		return ErrInvalidTarget
	}
	target.TeamIDs = slices.Clone(target.TeamIDs)
	b.session.Draft.Target = target
	return nil
}

func (b *Builder) SetMethod(m model.Method) error {
	if !m.Valid() {
		return ErrInvalidMethod
	}
	b.session.Draft.Method = m
	return nil
}

// Validate returns nil when the draft has a source and a non-empty target.
func (b *Builder) Validate() error {
	if len(b.session.Draft.Sources) == 0 {
		return ErrNoSources
	}
	if len(b.dir.Resolve(b.session.Draft.Target)) == 0 {
		return ErrTargetUnresolved
	}
	return nil
}

func (b *Builder) IsValid() bool { return b.Validate() == nil }

// Queue moves a valid draft onto the run queue as a pending rule and resets
// the draft.
func (b *Builder) Queue() (model.Rule, error) {
	if err := b.Validate(); err != nil {
		return model.Rule{}, err
	}
	draft := b.session.Draft
	rule := model.Rule{
		ID:          uuid.New(),
		Sources:     slices.Clone(draft.Sources),
		Target:      model.TargetSpec{Type: draft.Target.Type, ID: draft.Target.ID, TeamIDs: slices.Clone(draft.Target.TeamIDs)},
		Method:      draft.Method,
		Status:      model.RuleStatusPending,
		Description: Describe(draft, b.dir),
	}
	for _, s := range rule.Sources {
		rule.Requested += s.Quantity
	}
	b.session.Rules = append(b.session.Rules, rule)
	b.Reset()
	return rule, nil
}

func (b *Builder) DeleteRule(id uuid.UUID) bool {
	before := len(b.session.Rules)
	b.session.Rules = slices.DeleteFunc(b.session.Rules, func(r model.Rule) bool {
		return r.ID == id
	})
	return len(b.session.Rules) != before
}

// Reset clears the draft back to an empty group/equal rule.
func (b *Builder) Reset() {
	b.session.Draft = model.NewRuleDraft()
}
