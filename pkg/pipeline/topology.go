package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNoHandler      = errors.New("no handler for topic")
	ErrDuplicateTopic = errors.New("topic already bound")
)

// Topology maps source topics to their handlers.
type Topology struct {
	handlers map[string]Handler
}

func NewTopology() *Topology {
	return &Topology{handlers: map[string]Handler{}}
}

// Handle binds h to topic. A topic can be bound once.
func (t *Topology) Handle(topic string, h Handler) error {
	if _, exists := t.handlers[topic]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTopic, topic)
	}
	t.handlers[topic] = h
	return nil
}

// Topics returns the bound topics in lexical order.
func (t *Topology) Topics() []string {
	topics := make([]string, 0, len(t.handlers))
	for topic := range t.handlers {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Dispatch runs the handler bound to msg.Topic.
func (t *Topology) Dispatch(ctx context.Context, msg Message) error {
	h, ok := t.handlers[msg.Topic]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, msg.Topic)
	}
	return h(ctx, msg)
}
