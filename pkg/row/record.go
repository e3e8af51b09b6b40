package row

import (
	"bytes"
	"encoding/json"
)

// Record is an instance of a Schema with values stored by field position.
type Record struct {
	Schema *Schema
	Values []any
}

// New returns a record of the given schema with all values unset.
func New(schema *Schema) *Record {
	return &Record{Schema: schema, Values: make([]any, schema.Len())}
}

// FromNative builds a record from a decoded Avro map (goavro's native form).
func FromNative(schema *Schema, native map[string]any) *Record {
	r := New(schema)
	for i, f := range schema.Fields {
		r.Values[i] = native[f.Name]
	}
	return r
}

// Get returns the value of the named field, or nil when the schema has no such field.
func (r *Record) Get(name string) any {
	if r == nil {
		return nil
	}
	if i := r.Schema.Pos(name); i >= 0 {
		return r.Values[i]
	}
	return nil
}

// Set assigns the named field and reports whether the schema declares it.
func (r *Record) Set(name string, v any) bool {
	i := r.Schema.Pos(name)
	if i < 0 {
		return false
	}
	r.Values[i] = v
	return true
}

// Record returns the named field as a structured record. It reports false when
// the field is absent, null, or holds anything other than a record.
func (r *Record) Record(name string) (*Record, bool) {
	if r == nil {
		return nil, false
	}
	f, ok := r.Schema.Field(name)
	if !ok {
		return nil, false
	}

	switch v := r.Values[r.Schema.Pos(name)].(type) {
	case *Record:
		return v, v != nil
	case json.RawMessage:
		if len(bytes.TrimSpace(v)) == 0 || bytes.TrimSpace(v)[0] != '{' {
			return nil, false
		}
		sub, err := FromJSON(v)
		return sub, err == nil
	case map[string]any:
		if f.union {
			// goavro represents a non-null union value as {"<branch full name>": value}
			if len(v) != 1 {
				return nil, false
			}
			for branch, inner := range v {
				s, ok := f.records[branch]
				if !ok {
					return nil, false
				}
				m, ok := inner.(map[string]any)
				if !ok {
					return nil, false
				}
				return FromNative(s, m), true
			}
		}
		if len(f.records) != 1 {
			return nil, false
		}
		for _, s := range f.records {
			return FromNative(s, v), true
		}
	}
	return nil, false
}

// Native converts the record to goavro's native form. Nested records are
// converted recursively and wrapped as union values when their field is a union.
func (r *Record) Native() map[string]any {
	out := make(map[string]any, len(r.Values))
	for i, f := range r.Schema.Fields {
		v := r.Values[i]
		if sub, ok := v.(*Record); ok {
			if sub == nil {
				out[f.Name] = nil
				continue
			}
			if f.union {
				v = map[string]any{sub.Schema.FullName(): sub.Native()}
			} else {
				v = sub.Native()
			}
		}
		out[f.Name] = v
	}
	return out
}
