// Package notify provides the topic-scoped change notification dispatcher.
package notify

import (
	"context"
	"strconv"
	"time"
)

// Kind identifies what changed.
type Kind string

const (
	ItemUpdated      Kind = "item_updated"
	ItemDeleted      Kind = "item_deleted"
	ContainerUpdated Kind = "container_updated"
	ContainerDeleted Kind = "container_deleted"
	CommentAdded     Kind = "comment_added"
)

// WildcardTopic subscribes to every topic.
const WildcardTopic = "*"

// DefaultTopic is used for changes not scoped to a sprint.
const DefaultTopic = "global"

// Event is one published change.
type Event struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Kind      Kind      `json:"kind"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher broadcasts change events. Publish never blocks on subscribers
// and never reports delivery failures.
type Publisher interface {
	Publish(ctx context.Context, topic string, kind Kind, payload any)
}

// Subscriber receives events for a topic. The returned function
// unsubscribes and closes the channel.
type Subscriber interface {
	Subscribe(topic string) (<-chan Event, func())
}

// SprintTopic returns the topic for changes inside a sprint.
func SprintTopic(id int64) string { return "sprint:" + strconv.FormatInt(id, 10) }

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, Kind, any) {}
