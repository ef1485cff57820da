package lottery

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"facilityops/lottery/internal/model"
)

// Snapshot is one full state of a scope's records together with the team layout
// they should be grouped against. A snapshot carrying Err replaces the view with
// an empty one.
type Snapshot struct {
	Records   []model.InvitationRecord
	Directory *Directory
	Err       error
}

// PoolReader keeps the latest PoolView of one scope. Each snapshot replaces the
// previous view wholesale.
type PoolReader struct {
	scope  model.Scope
	logger *zap.Logger

	mu        sync.RWMutex
	view      PoolView
	dir       *Directory
	changed   *broadcast
	ready     chan struct{}
	readyOnce sync.Once
}

func NewPoolReader(scope model.Scope, logger *zap.Logger) *PoolReader {
	return &PoolReader{
		scope:   scope,
		logger:  logger,
		view:    EmptyPoolView(scope),
		dir:     NewDirectory(scope.FacilityID, nil, nil),
		changed: newBroadcast(),
		ready:   make(chan struct{}),
	}
}

// Run consumes updates until ctx is done or the channel closes. An incomplete
// scope never subscribes and stays empty.
func (r *PoolReader) Run(ctx context.Context, updates <-chan Snapshot) {
	if !r.scope.Complete() {
		r.markReady()
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			r.Apply(s)
		}
	}
}

// Apply recomputes the view from s.
func (r *PoolReader) Apply(s Snapshot) {
	view := EmptyPoolView(r.scope)
	dir := s.Directory
	if dir == nil {
		dir = NewDirectory(r.scope.FacilityID, nil, nil)
	}
	if s.Err != nil {
		r.logger.Error("invitation pool subscription failed",
			zap.String("scope", r.scope.Key()), zap.Error(s.Err))
	} else {
		view = BuildPoolView(r.scope, s.Records, dir, r.logger)
	}

	r.mu.Lock()
	r.view = view
	r.dir = dir
	r.mu.Unlock()

	r.markReady()
	r.changed.Notify()
}

func (r *PoolReader) View() PoolView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

func (r *PoolReader) Directory() *Directory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dir
}

// Changed returns a channel closed on the next view replacement.
func (r *PoolReader) Changed() <-chan struct{} { return r.changed.Wait() }

// Ready is closed once the first snapshot has been applied.
func (r *PoolReader) Ready() <-chan struct{} { return r.ready }

func (r *PoolReader) markReady() {
	r.readyOnce.Do(func() { close(r.ready) })
}
