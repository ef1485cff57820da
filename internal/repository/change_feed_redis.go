package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const changeChannelPrefix = "lottery:changes:"

type redisChangeFeed struct {
	client *redis.Client
}

func NewRedisChangeFeed(client *redis.Client) ChangeFeed {
	return &redisChangeFeed{client: client}
}

func (f *redisChangeFeed) Publish(ctx context.Context, scopeKey string, topic ChangeTopic) error {
	return f.client.Publish(ctx, changeChannelPrefix+scopeKey, string(topic)).Err()
}

func (f *redisChangeFeed) Subscribe(ctx context.Context, scopeKey string) (<-chan ChangeTopic, error) {
	ps := f.client.Subscribe(ctx, changeChannelPrefix+scopeKey)
	// Wait for the subscription to be confirmed so no publish after return is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan ChangeTopic, 16)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- ChangeTopic(msg.Payload):
				default:
				}
			}
		}
	}()
	return out, nil
}
