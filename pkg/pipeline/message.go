package pipeline

import (
	"context"
	"time"
)

// Message is a single record consumed from or published to a topic.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes one consumed message. A returned error is fatal for the
// runtime: the message is not acknowledged and consumption stops.
type Handler func(ctx context.Context, msg Message) error

// Runtime consumes every topic of a Topology and dispatches each message to
// its handler until ctx is done or a handler fails.
type Runtime interface {
	Run(ctx context.Context, t *Topology) error
}
