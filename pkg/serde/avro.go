package serde

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edgeflare/silver/pkg/row"
	"github.com/linkedin/goavro/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

type readerSchema struct {
	codec  *goavro.Codec
	schema *row.Schema
}

// AvroDeserializer decodes framed Avro values using writer schemas fetched
// from a registry. Schemas are fetched once per id.
type AvroDeserializer struct {
	registry Registry
	schemas  *xsync.MapOf[uint32, *readerSchema]
}

func NewAvroDeserializer(registry Registry) *AvroDeserializer {
	return &AvroDeserializer{
		registry: registry,
		schemas:  xsync.NewMapOf[uint32, *readerSchema](),
	}
}

func (d *AvroDeserializer) Deserialize(ctx context.Context, topic string, data []byte) (*row.Record, error) {
	if len(data) == 0 {
		return nil, nil
	}

	id, body, err := Unframe(data)
	if err != nil {
		return nil, fmt.Errorf("topic %s: %w", topic, err)
	}

	rs, err := d.schema(ctx, id)
	if err != nil {
		return nil, err
	}

	native, _, err := rs.codec.NativeFromBinary(body)
	if err != nil {
		return nil, fmt.Errorf("decode avro value of %s with schema %d: %w", topic, id, err)
	}
	m, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema %d: decoded value is %T, not a record", id, native)
	}
	return row.FromNative(rs.schema, m), nil
}

func (d *AvroDeserializer) schema(ctx context.Context, id uint32) (*readerSchema, error) {
	if rs, ok := d.schemas.Load(id); ok {
		return rs, nil
	}

	text, err := d.registry.SchemaByID(ctx, id)
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(text)
	if err != nil {
		return nil, fmt.Errorf("schema %d: %w", id, err)
	}
	schema, err := row.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("schema %d: %w", id, err)
	}

	rs, _ := d.schemas.LoadOrStore(id, &readerSchema{codec: codec, schema: schema})
	return rs, nil
}

type writerSchema struct {
	codec *goavro.Codec
	text  string
}

// AvroSerializer encodes rows as framed Avro. Each row schema is registered
// once per topic under the topic's value subject.
type AvroSerializer struct {
	registry Registry
	codecs   *xsync.MapOf[*row.Schema, *writerSchema]
	ids      *xsync.MapOf[string, *xsync.MapOf[*row.Schema, uint32]]
}

func NewAvroSerializer(registry Registry) *AvroSerializer {
	return &AvroSerializer{
		registry: registry,
		codecs:   xsync.NewMapOf[*row.Schema, *writerSchema](),
		ids:      xsync.NewMapOf[string, *xsync.MapOf[*row.Schema, uint32]](),
	}
}

func (s *AvroSerializer) Serialize(ctx context.Context, topic string, rec *row.Record) ([]byte, error) {
	ws, err := s.codec(rec.Schema)
	if err != nil {
		return nil, err
	}

	topicIDs, _ := s.ids.LoadOrStore(topic, xsync.NewMapOf[*row.Schema, uint32]())
	id, ok := topicIDs.Load(rec.Schema)
	if !ok {
		id, err = s.registry.Register(ctx, ValueSubject(topic), ws.text)
		if err != nil {
			return nil, err
		}
		topicIDs.Store(rec.Schema, id)
	}

	body, err := ws.codec.BinaryFromNative(nil, rec.Native())
	if err != nil {
		return nil, fmt.Errorf("encode %s for %s: %w", rec.Schema.FullName(), topic, err)
	}
	return Frame(id, body), nil
}

func (s *AvroSerializer) codec(schema *row.Schema) (*writerSchema, error) {
	if ws, ok := s.codecs.Load(schema); ok {
		return ws, nil
	}

	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("render schema %s: %w", schema.FullName(), err)
	}
	codec, err := goavro.NewCodec(string(b))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", schema.FullName(), err)
	}

	ws, _ := s.codecs.LoadOrStore(schema, &writerSchema{codec: codec, text: string(b)})
	return ws, nil
}
