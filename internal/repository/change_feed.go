package repository

import "context"

type ChangeTopic string

const (
	TopicRecords ChangeTopic = "records"
	TopicHistory ChangeTopic = "history"
)

// ChangeFeed tells subscribers of a scope that its records or history changed.
// Notifications carry no data; subscribers refetch. Delivery is best effort.
type ChangeFeed interface {
	Publish(ctx context.Context, scopeKey string, topic ChangeTopic) error
	// Subscribe returns a channel that is closed when ctx ends.
	Subscribe(ctx context.Context, scopeKey string) (<-chan ChangeTopic, error)
}
