// Package row models Avro-style record schemas and positional records.
//
// A Schema keeps every field type as the raw JSON it was parsed from, so a
// schema derived from another one carries the source types, defaults and
// custom properties through unchanged. Values inside a Record stay in the
// native form of the codec that produced them and are never coerced.
package row

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Field describes one field of a record schema.
type Field struct {
	Name string
	// Type is the raw Avro type of the field, e.g. `"long"` or `["null",{...}]`.
	Type       json.RawMessage
	Doc        string
	Default    json.RawMessage
	HasDefault bool
	Props      map[string]json.RawMessage

	union   bool
	records map[string]*Schema // structured record types reachable directly from Type, by full name
}

// Records returns the record schemas a value of this field may hold, keyed by
// full name. Nil when the field holds no record type.
func (f *Field) Records() map[string]*Schema {
	return f.records
}

// Schema is a named, namespaced, ordered record schema. It must not be mutated
// after construction.
type Schema struct {
	Name      string
	Namespace string
	Doc       string
	Fields    []Field
	Props     map[string]json.RawMessage

	index map[string]int
}

// NewSchema builds a record schema and indexes its fields by name.
func NewSchema(name, namespace string, fields []Field, props map[string]json.RawMessage) *Schema {
	s := &Schema{
		Name:      name,
		Namespace: namespace,
		Fields:    fields,
		Props:     props,
	}
	s.reindex()
	return s
}

func (s *Schema) reindex() {
	s.index = make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		if _, dup := s.index[f.Name]; !dup {
			s.index[f.Name] = i
		}
	}
}

// FullName returns namespace.name, or name alone when the namespace is empty.
func (s *Schema) FullName() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "." + s.Name
}

// Field returns the field with the given name.
func (s *Schema) Field(name string) (*Field, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return &s.Fields[i], true
}

// Pos returns the position of the named field or -1.
func (s *Schema) Pos(name string) int {
	if s == nil {
		return -1
	}
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.Fields)
}

// FieldNames returns the field names in schema order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// MarshalJSON renders the schema as Avro schema JSON. Keys are emitted in a
// fixed order so equal schemas render to equal bytes.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"record"`)
	writeString(&buf, "name", s.Name)
	if s.Namespace != "" {
		writeString(&buf, "namespace", s.Namespace)
	}
	if s.Doc != "" {
		writeString(&buf, "doc", s.Doc)
	}
	buf.WriteString(`,"fields":[`)
	for i := range s.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := s.Fields[i].marshal(&buf); err != nil {
			return nil, fmt.Errorf("field %s: %w", s.Fields[i].Name, err)
		}
	}
	buf.WriteByte(']')
	writeProps(&buf, s.Props)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String returns the schema JSON.
func (s *Schema) String() string {
	b, err := s.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid schema %s: %v>", s.FullName(), err)
	}
	return string(b)
}

func (f *Field) marshal(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	name, _ := json.Marshal(f.Name)
	buf.WriteString(`"name":`)
	buf.Write(name)
	if len(f.Type) == 0 {
		return fmt.Errorf("missing type")
	}
	buf.WriteString(`,"type":`)
	buf.Write(f.Type)
	if f.Doc != "" {
		writeString(buf, "doc", f.Doc)
	}
	if f.HasDefault {
		buf.WriteString(`,"default":`)
		if len(f.Default) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(f.Default)
		}
	}
	writeProps(buf, f.Props)
	buf.WriteByte('}')
	return nil
}

func writeString(buf *bytes.Buffer, key, value string) {
	k, _ := json.Marshal(key)
	v, _ := json.Marshal(value)
	buf.WriteByte(',')
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
}

func writeProps(buf *bytes.Buffer, props map[string]json.RawMessage) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key, _ := json.Marshal(k)
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(props[k])
	}
}
