package testutil

import (
	"encoding/binary"

	"github.com/linkedin/goavro/v2"
)

// ValueRecord is the full name of the row record declared in envelope.avsc.
const ValueRecord = "esw.ESW.TB_CB_LPCO.Value"

// Envelope returns the goavro native form of an envelope.avsc event. A nil
// before or after is encoded as null.
func Envelope(op string, before, after map[string]any) map[string]any {
	union := func(v map[string]any) any {
		if v == nil {
			return nil
		}
		value := map[string]any{"ISSUED_AT": nil}
		for k, x := range v {
			value[k] = x
		}
		return map[string]any{ValueRecord: value}
	}
	return map[string]any{
		"before": union(before),
		"after":  union(after),
		"source": map[string]any{
			"version":   "2.5.0.Final",
			"connector": "oracle",
			"name":      "esw",
			"ts_ms":     int64(1700000000000),
			"schema":    "ESW",
			"table":     "TB_CB_LPCO",
		},
		"op":    op,
		"ts_ms": map[string]any{"long": int64(1700000000123)},
	}
}

// EncodeAvro encodes native with schema and prepends the registry wire header for id.
func EncodeAvro(schema string, id uint32, native map[string]any) ([]byte, error) {
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, err
	}
	header := make([]byte, 5)
	binary.BigEndian.PutUint32(header[1:], id)
	return codec.BinaryFromNative(header, native)
}

// DecodeAvro strips the wire header from data and decodes the rest with schema.
func DecodeAvro(schema string, data []byte) (map[string]any, error) {
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, err
	}
	native, _, err := codec.NativeFromBinary(data[5:])
	if err != nil {
		return nil, err
	}
	m, _ := native.(map[string]any)
	return m, nil
}
