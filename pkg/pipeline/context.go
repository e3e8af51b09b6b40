package pipeline

import (
	"github.com/edgeflare/silver/pkg/config"
	"github.com/edgeflare/silver/pkg/pipeline/route"
	"github.com/edgeflare/silver/pkg/pipeline/transform"
	"github.com/edgeflare/silver/pkg/serde"
	"go.uber.org/zap"
)

// Options control naming of silver topics, tables and records.
type Options struct {
	TopicPrefix     string
	StripPrefix     string
	NameStyle       route.NameStyle
	Namespace       string
	RecordNamespace string
}

// OptionsFromConfig extracts the naming options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TopicPrefix:     cfg.Silver.TopicPrefix,
		StripPrefix:     cfg.Silver.StripPrefix,
		NameStyle:       route.ParseNameStyle(cfg.Silver.NameStyle),
		Namespace:       cfg.Iceberg.Namespace,
		RecordNamespace: cfg.RecordNamespace(),
	}
}

// Destination returns the silver topic and table identifier of a binding.
func (o Options) Destination(b Binding) (topic, table string) {
	return route.DestinationTopic(b.Topic, o.TopicPrefix, o.StripPrefix, o.NameStyle),
		route.TableIdentifier(o.Namespace, b.Table)
}

// Context carries what tasks need to build handlers.
type Context struct {
	Options      Options
	Schemas      *transform.SchemaCache
	Deserializer serde.Deserializer
	Serializer   serde.Serializer
	Sink         Connector
	SinkName     string
	Logger       *zap.Logger

	enabled map[string]bool
}

// NewContext returns a Context enabling the given topics. A nil cache gets a fresh one.
func NewContext(opts Options, topics []string, schemas *transform.SchemaCache) *Context {
	if schemas == nil {
		schemas = transform.NewSchemaCache()
	}
	enabled := make(map[string]bool, len(topics))
	for _, t := range topics {
		enabled[t] = true
	}
	return &Context{
		Options: opts,
		Schemas: schemas,
		Logger:  zap.NewNop(),
		enabled: enabled,
	}
}

// Enabled reports whether topic is in the enabled set.
func (c *Context) Enabled(topic string) bool {
	return c.enabled[topic]
}
