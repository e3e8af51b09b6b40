package serde

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgeflare/silver/pkg/row"
)

// Deserializer decodes a record value consumed from topic. A nil record with a
// nil error means the value was a tombstone.
type Deserializer interface {
	Deserialize(ctx context.Context, topic string, data []byte) (*row.Record, error)
}

// Serializer encodes a row for publication to topic.
type Serializer interface {
	Serialize(ctx context.Context, topic string, rec *row.Record) ([]byte, error)
}

// Value formats accepted by New.
const (
	FormatAvro = "avro"
	FormatJSON = "json"
)

// ValueSubject returns the registry subject for a topic's values.
func ValueSubject(topic string) string {
	return topic + "-value"
}

// New returns the serde pair for a value format. bronze resolves the schemas of
// consumed values and silver registers the schemas of produced ones; both are
// ignored for JSON.
func New(format string, bronze, silver Registry) (Deserializer, Serializer, error) {
	switch strings.ToLower(format) {
	case "", FormatAvro:
		if bronze == nil || silver == nil {
			return nil, nil, fmt.Errorf("avro format requires a schema registry")
		}
		return NewAvroDeserializer(bronze), NewAvroSerializer(silver), nil
	case FormatJSON:
		return JSONDeserializer{}, JSONSerializer{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown value format %q", format)
	}
}
