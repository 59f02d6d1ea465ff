// Package mq publishes upload lifecycle events to an optional message
// broker so downstream consumers (dashboards, notification jobs) can react
// without polling. The service works fully without a broker configured.
package mq

import "context"

// Topics published by the service.
const (
	TopicUploadCreated = "uploads.created"
	TopicUploadDeleted = "uploads.deleted"
)

// Publisher sends a message to a named topic/queue.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
	Close() error
}
