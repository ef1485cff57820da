package lottery

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"facilityops/lottery/internal/model"
)

// HistorySnapshot is the full package list of a scope as currently stored.
type HistorySnapshot struct {
	Packages []model.LotteryPackage
	Version  int64
	Err      error
}

// HistoryListener mirrors a scope's confirmed packages. Updates replace the
// list wholesale; errors and stale versions keep the last good list. A failed
// fetch still marks the listener ready and is reported by Err until a good
// snapshot arrives.
type HistoryListener struct {
	scope  model.Scope
	logger *zap.Logger

	mu        sync.RWMutex
	packages  []model.LotteryPackage
	version   int64
	err       error
	changed   *broadcast
	ready     chan struct{}
	readyOnce sync.Once
}

func NewHistoryListener(scope model.Scope, logger *zap.Logger) *HistoryListener {
	return &HistoryListener{
		scope:    scope,
		logger:   logger,
		packages: []model.LotteryPackage{},
		changed:  newBroadcast(),
		ready:    make(chan struct{}),
	}
}

func (l *HistoryListener) Run(ctx context.Context, updates <-chan HistorySnapshot) {
	if !l.scope.Complete() {
		l.readyOnce.Do(func() { close(l.ready) })
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
			l.Apply(s)
		}
	}
}

func (l *HistoryListener) Apply(s HistorySnapshot) {
	if s.Err != nil {
		l.logger.Error("lottery history subscription failed",
			zap.String("scope", l.scope.Key()), zap.Error(s.Err))
		l.mu.Lock()
		l.err = s.Err
		l.mu.Unlock()
		l.readyOnce.Do(func() { close(l.ready) })
		return
	}
	list := slices.Clone(s.Packages)
	if list == nil {
		list = []model.LotteryPackage{}
	}

	l.mu.Lock()
	l.err = nil
	if s.Version < l.version {
		// Versions only grow; this snapshot was fetched before a newer write.
		l.mu.Unlock()
		return
	}
	l.packages = list
	l.version = s.Version
	l.mu.Unlock()

	l.readyOnce.Do(func() { close(l.ready) })
	l.changed.Notify()
}

// List returns the packages in stored order.
func (l *HistoryListener) List() []model.LotteryPackage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.packages
}

func (l *HistoryListener) Version() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Err returns the error of the latest fetch, or nil once a snapshot has been
// read successfully since.
func (l *HistoryListener) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

func (l *HistoryListener) Changed() <-chan struct{} { return l.changed.Wait() }

func (l *HistoryListener) Ready() <-chan struct{} { return l.ready }
