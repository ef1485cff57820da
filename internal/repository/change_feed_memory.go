package repository

import (
	"context"
	"sync"
)

type memorySubscriber struct {
	ch chan ChangeTopic
}

type memoryChangeFeed struct {
	mu   sync.Mutex
	subs map[string]map[*memorySubscriber]struct{}
}

// NewMemoryChangeFeed returns an in-process feed for single-instance deployments.
func NewMemoryChangeFeed() ChangeFeed {
	return &memoryChangeFeed{subs: make(map[string]map[*memorySubscriber]struct{})}
}

func (f *memoryChangeFeed) Publish(_ context.Context, scopeKey string, topic ChangeTopic) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs[scopeKey] {
		select {
		case sub.ch <- topic:
		default:
		}
	}
	return nil
}

func (f *memoryChangeFeed) Subscribe(ctx context.Context, scopeKey string) (<-chan ChangeTopic, error) {
	sub := &memorySubscriber{ch: make(chan ChangeTopic, 16)}

	f.mu.Lock()
	if f.subs[scopeKey] == nil {
		f.subs[scopeKey] = make(map[*memorySubscriber]struct{})
	}
	f.subs[scopeKey][sub] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs[scopeKey], sub)
		if len(f.subs[scopeKey]) == 0 {
			delete(f.subs, scopeKey)
		}
		close(sub.ch)
		f.mu.Unlock()
	}()
	return sub.ch, nil
}
