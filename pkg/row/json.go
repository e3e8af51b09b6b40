package row

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// JSONNamespace is the namespace of schemas inferred from JSON objects.
const JSONNamespace = "json"

var (
	ErrNotObject = errors.New("json value is not an object")
)

// FromJSON decodes a JSON object into a record, keeping member order. Member
// values stay raw JSON. The inferred schema is named after a fingerprint of the
// member names, so objects with the same members in the same order share a
// full name and differently shaped objects do not.
func FromJSON(data []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrNotObject
	}

	var (
		fields []Field
		values []any
		seen   = map[string]int{}
	)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode json key: %w", err)
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode json member %q: %w", key, err)
		}

		if i, dup := seen[key]; dup {
			values[i] = raw
			continue
		}
		seen[key] = len(fields)
		fields = append(fields, Field{Name: key, Type: inferType(raw)})
		values = append(values, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	name := fmt.Sprintf("r%016x", xxhash.Sum64String(strings.Join(names, "\x00")))

	return &Record{
		Schema: NewSchema(name, JSONNamespace, fields, nil),
		Values: values,
	}, nil
}

func inferType(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage(`"null"`)
	}
	switch trimmed[0] {
	case '"':
		return json.RawMessage(`"string"`)
	case 't', 'f':
		return json.RawMessage(`"boolean"`)
	case 'n':
		return json.RawMessage(`"null"`)
	case '{':
		return json.RawMessage(`{"type":"map","values":"string"}`)
	case '[':
		return json.RawMessage(`{"type":"array","items":"string"}`)
	default:
		return json.RawMessage(`"double"`)
	}
}

// MarshalJSON renders the record as a JSON object in field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Schema.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.Name)
		buf.Write(key)
		buf.WriteByte(':')

		var (
			b   []byte
			err error
		)
		switch v := r.Values[i].(type) {
		case json.RawMessage:
			b = v
			if len(b) == 0 {
				b = []byte("null")
			}
		default:
			b, err = json.Marshal(v)
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
