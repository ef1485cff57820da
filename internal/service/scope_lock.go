package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"facilityops/lottery/internal/model"
	"facilityops/lottery/internal/repository"
)

const lockKeyPrefix = "lottery:lock:"

// scopeLock serialises run, confirm and cancel for one scope across processes.
type scopeLock struct {
	store  repository.StateStore
	key    string
	token  []byte
	ttl    time.Duration
	logger *zap.Logger
	stop   context.CancelFunc
	done   chan struct{}
}

// acquireScopeLock takes the lock or fails with ErrScopeBusy. While held the
// lock is extended every ttl/2 so long reveals do not lose it.
func acquireScopeLock(ctx context.Context, store repository.StateStore, scope model.Scope, owner string, ttl time.Duration, logger *zap.Logger) (*scopeLock, error) {
	l := &scopeLock{
		store:  store,
		key:    lockKeyPrefix + scope.Key(),
		token:  []byte(owner + "/" + uuid.NewString()),
		ttl:    ttl,
		logger: logger,
		done:   make(chan struct{}),
	}
	ok, err := store.SetNX(ctx, l.key, l.token, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire scope lock: %w", err)
	}
	if !ok {
		return nil, ErrScopeBusy
	}

	keepCtx, stop := context.WithCancel(context.Background())
	l.stop = stop
	go l.keepAlive(keepCtx)
	return l, nil
}

func (l *scopeLock) keepAlive(ctx context.Context) {
	defer close(l.done)
	if l.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := l.store.Extend(ctx, l.key, l.token, l.ttl)
			switch {
			case err != nil:
				l.logger.Warn("failed to extend scope lock", zap.String("key", l.key), zap.Error(err))
			case !ok:
				l.logger.Warn("scope lock lost", zap.String("key", l.key))
				return
			}
		}
	}
}

// Release drops the lock if this holder still owns it.
func (l *scopeLock) Release() {
	l.stop()
	<-l.done

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := l.store.CompareAndDelete(ctx, l.key, l.token); err != nil {
		l.logger.Warn("failed to release scope lock", zap.String("key", l.key), zap.Error(err))
	}
}
