package kafka

import (
	"context"
	"errors"
	"sync"

	"github.com/IBM/sarama"
	"github.com/edgeflare/silver/pkg/pipeline"
	"go.uber.org/zap"
)

var _ pipeline.Runtime = (*Runtime)(nil)

// Runtime consumes a Topology with a sarama consumer group. Messages of a
// partition are handled one at a time and their offsets are marked only
// after the handler succeeded.
type Runtime struct {
	group  sarama.ConsumerGroup
	logger *zap.Logger
}

// NewRuntime creates the consumer group named after cfg.ClientID.
func NewRuntime(cfg *Config, logger *zap.Logger) (*Runtime, error) {
	group, err := NewClient(cfg, logger).CreateConsumerGroup()
	if err != nil {
		return nil, err
	}
	return NewRuntimeFromGroup(group, logger), nil
}

// NewRuntimeFromGroup wraps an existing consumer group.
func NewRuntimeFromGroup(group sarama.ConsumerGroup, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{group: group, logger: logger}
}

// Run consumes until ctx is done or a handler fails. The group is closed on
// return. The first handler error is returned.
func (r *Runtime) Run(ctx context.Context, t *pipeline.Topology) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() {
		if err := r.group.Close(); err != nil {
			r.logger.Warn("failed to close consumer group", zap.Error(err))
		}
	}()

	go func() {
		for err := range r.group.Errors() {
			r.logger.Error("consumer group error", zap.Error(err))
		}
	}()

	h := &groupHandler{topology: t, logger: r.logger, cancel: cancel}
	topics := t.Topics()
	r.logger.Info("consuming", zap.Strings("topics", topics))

	for {
		err := r.group.Consume(ctx, topics, h)
		if herr := h.Err(); herr != nil {
			return herr
		}
		if err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Info("consumer group rebalanced")
	}
}

// groupHandler implements sarama.ConsumerGroupHandler over a Topology.
type groupHandler struct {
	topology *pipeline.Topology
	logger   *zap.Logger
	cancel   context.CancelFunc

	mu  sync.Mutex
	err error
}

func (h *groupHandler) Setup(s sarama.ConsumerGroupSession) error {
	h.logger.Debug("session started", zap.String("member", s.MemberID()), zap.Int32("generation", s.GenerationID()))
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case m, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			msg := pipeline.Message{
				Topic:     m.Topic,
				Partition: m.Partition,
				Offset:    m.Offset,
				Key:       m.Key,
				Value:     m.Value,
				Timestamp: m.Timestamp,
			}
			if err := h.topology.Dispatch(session.Context(), msg); err != nil {
				h.fail(err)
				h.logger.Error("handler failed, stopping",
					zap.String("topic", m.Topic),
					zap.Int32("partition", m.Partition),
					zap.Int64("offset", m.Offset),
					zap.Error(err))
				return err
			}
			session.MarkMessage(m, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *groupHandler) fail(err error) {
	h.mu.Lock()
	if h.err == nil {
		h.err = err
	}
	h.mu.Unlock()
	h.cancel()
}

// Err returns the first handler error.
func (h *groupHandler) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}
