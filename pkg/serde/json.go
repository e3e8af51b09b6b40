package serde

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/edgeflare/silver/pkg/row"
)

// JSONDeserializer decodes Debezium JSON values. Member order is kept so the
// silver row has the same field order as the source. Empty and null values
// are tombstones.
type JSONDeserializer struct{}

func (JSONDeserializer) Deserialize(_ context.Context, topic string, data []byte) (*row.Record, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	rec, err := row.FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("decode json value of %s: %w", topic, err)
	}
	return rec, nil
}

// JSONSerializer renders rows as JSON objects in field order.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(_ context.Context, topic string, rec *row.Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode json value for %s: %w", topic, err)
	}
	return b, nil
}
