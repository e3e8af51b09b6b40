package pipeline

import (
	"context"
	"fmt"

	"github.com/edgeflare/silver/pkg/metrics"
	"github.com/edgeflare/silver/pkg/pipeline/cdc"
	"github.com/edgeflare/silver/pkg/pipeline/route"
	"github.com/edgeflare/silver/pkg/pipeline/transform"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Handler returns the bronze to silver handler of a binding: deserialize,
// extract "after", derive the silver schema, project, serialize and publish
// under the same key. Events without an "after" row are dropped.
func (c *Context) Handler(task string, b Binding) Handler {
	destination, table := c.Options.Destination(b)
	recordName := route.RecordName(b.Table)

	return func(ctx context.Context, msg Message) error {
		timer := prometheus.NewTimer(metrics.EventProcessingDuration.WithLabelValues(task, msg.Topic))
		defer timer.ObserveDuration()

		envelope, err := c.Deserializer.Deserialize(ctx, msg.Topic, msg.Value)
		if err != nil {
			return fmt.Errorf("%s[%d]@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
		}
		if envelope == nil {
			metrics.DroppedEvents.WithLabelValues(task, msg.Topic, metrics.ReasonTombstone).Inc()
			return nil
		}

		after := transform.ExtractAfter(envelope)
		if after == nil {
			metrics.DroppedEvents.WithLabelValues(task, msg.Topic, metrics.ReasonNoAfter).Inc()
			c.Logger.Debug("dropping event without after",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.String("op", cdc.OperationOf(envelope).String()))
			return nil
		}

		schema := c.Schemas.Derive(after, c.Options.RecordNamespace, recordName)
		metrics.SchemaCacheEntries.Set(float64(c.Schemas.Len()))

		value, err := c.Serializer.Serialize(ctx, destination, transform.Project(after, schema, table))
		if err != nil {
			return fmt.Errorf("%s[%d]@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
		}

		out := Message{
			Topic:     destination,
			Key:       msg.Key,
			Value:     value,
			Timestamp: msg.Timestamp,
		}
		if err := c.Sink.Pub(ctx, out); err != nil {
			metrics.PublishErrors.WithLabelValues(c.SinkName).Inc()
			return fmt.Errorf("publish to %s: %w", destination, err)
		}

		metrics.ProcessedEvents.WithLabelValues(task, msg.Topic).Inc()
		return nil
	}
}
