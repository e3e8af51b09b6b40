package row

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotRecord = errors.New("schema is not a record")
)

var primitives = map[string]bool{
	"null": true, "boolean": true, "int": true, "long": true,
	"float": true, "double": true, "bytes": true, "string": true,
}

var reservedSchemaKeys = map[string]bool{
	"type": true, "name": true, "namespace": true, "doc": true, "fields": true,
}

var reservedFieldKeys = map[string]bool{
	"name": true, "type": true, "doc": true, "default": true,
}

// Parse parses Avro schema JSON whose top-level type is a record. Named record
// types declared anywhere in the schema can be referenced by later fields, as
// Debezium envelopes do for "after" referring to the "Value" declared in "before".
func Parse(schemaJSON string) (*Schema, error) {
	p := &parser{names: map[string]*Schema{}}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(schemaJSON), &obj); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return p.record(obj, "")
}

type parser struct {
	names map[string]*Schema
}

func (p *parser) record(obj map[string]json.RawMessage, enclosingNS string) (*Schema, error) {
	var typ string
	if err := json.Unmarshal(obj["type"], &typ); err != nil || (typ != "record" && typ != "error") {
		return nil, ErrNotRecord
	}

	var name, namespace, doc string
	if err := unmarshalOptional(obj["name"], &name); err != nil || name == "" {
		return nil, fmt.Errorf("record without name")
	}
	if err := unmarshalOptional(obj["namespace"], &namespace); err != nil {
		return nil, fmt.Errorf("record %s: invalid namespace: %w", name, err)
	}
	if err := unmarshalOptional(obj["doc"], &doc); err != nil {
		return nil, fmt.Errorf("record %s: invalid doc: %w", name, err)
	}

	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		namespace, name = name[:i], name[i+1:]
	} else if _, declared := obj["namespace"]; !declared {
		namespace = enclosingNS
	}

	s := &Schema{Name: name, Namespace: namespace, Doc: doc}
	p.names[s.FullName()] = s

	var rawFields []map[string]json.RawMessage
	if err := json.Unmarshal(obj["fields"], &rawFields); err != nil {
		return nil, fmt.Errorf("record %s: invalid fields: %w", s.FullName(), err)
	}

	s.Fields = make([]Field, 0, len(rawFields))
	for _, rf := range rawFields {
		f, err := p.field(rf, namespace)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", s.FullName(), err)
		}
		s.Fields = append(s.Fields, f)
	}

	for k, v := range obj {
		if reservedSchemaKeys[k] {
			continue
		}
		if s.Props == nil {
			s.Props = map[string]json.RawMessage{}
		}
		s.Props[k] = v
	}

	s.reindex()
	return s, nil
}

func (p *parser) field(obj map[string]json.RawMessage, namespace string) (Field, error) {
	var f Field
	if err := json.Unmarshal(obj["name"], &f.Name); err != nil || f.Name == "" {
		return f, fmt.Errorf("field without name")
	}
	if len(obj["type"]) == 0 {
		return f, fmt.Errorf("field %s without type", f.Name)
	}
	if err := unmarshalOptional(obj["doc"], &f.Doc); err != nil {
		return f, fmt.Errorf("field %s: invalid doc: %w", f.Name, err)
	}
	typ, err := qualify(obj["type"], namespace)
	if err != nil {
		return f, fmt.Errorf("field %s: %w", f.Name, err)
	}
	f.Type = typ
	if def, ok := obj["default"]; ok {
		f.Default = def
		f.HasDefault = true
	}
	for k, v := range obj {
		if reservedFieldKeys[k] {
			continue
		}
		if f.Props == nil {
			f.Props = map[string]json.RawMessage{}
		}
		f.Props[k] = v
	}

	records := map[string]*Schema{}
	union, err := p.resolve(f.Type, namespace, records, true)
	if err != nil {
		return f, fmt.Errorf("field %s: %w", f.Name, err)
	}
	f.union = union
	if len(records) > 0 {
		f.records = records
	}
	return f, nil
}

// resolve walks a type, registering every named record it declares. When
// direct is true, records a value of this type may hold are added to out.
func (p *parser) resolve(raw json.RawMessage, namespace string, out map[string]*Schema, direct bool) (union bool, err error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return false, fmt.Errorf("empty type")
	}

	switch trimmed[0] {
	case '"':
		var ref string
		if err := json.Unmarshal(raw, &ref); err != nil {
			return false, err
		}
		if primitives[ref] || !direct {
			return false, nil
		}
		if s := p.lookup(ref, namespace); s != nil {
			out[s.FullName()] = s
		}
		return false, nil

	case '[':
		var branches []json.RawMessage
		if err := json.Unmarshal(raw, &branches); err != nil {
			return false, err
		}
		for _, b := range branches {
			if _, err := p.resolve(b, namespace, out, direct); err != nil {
				return false, err
			}
		}
		return true, nil

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return false, err
		}
		var typ string
		_ = json.Unmarshal(obj["type"], &typ)
		switch typ {
		case "record", "error":
			s, err := p.record(obj, namespace)
			if err != nil {
				return false, err
			}
			if direct {
				out[s.FullName()] = s
			}
		case "array":
			if _, err := p.resolve(obj["items"], namespace, out, false); err != nil {
				return false, err
			}
		case "map":
			if _, err := p.resolve(obj["values"], namespace, out, false); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	return false, fmt.Errorf("unsupported type %s", trimmed)
}

// qualify rewrites a type so that every named type it declares or references
// carries its full name. The result resolves the same way under any enclosing
// namespace, which lets a field type be copied into another record.
func qualify(raw json.RawMessage, namespace string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty type")
	}

	switch trimmed[0] {
	case '"':
		var ref string
		if err := json.Unmarshal(trimmed, &ref); err != nil {
			return nil, err
		}
		if primitives[ref] || namespace == "" || strings.Contains(ref, ".") {
			return raw, nil
		}
		return json.Marshal(namespace + "." + ref)

	case '[':
		var branches []json.RawMessage
		if err := json.Unmarshal(trimmed, &branches); err != nil {
			return nil, err
		}
		for i, b := range branches {
			q, err := qualify(b, namespace)
			if err != nil {
				return nil, err
			}
			branches[i] = q
		}
		return json.Marshal(branches)

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, err
		}
		var typ string
		_ = json.Unmarshal(obj["type"], &typ)

		switch typ {
		case "record", "error", "enum", "fixed":
			ns, err := qualifyName(obj, namespace)
			if err != nil {
				return nil, err
			}
			if typ == "record" || typ == "error" {
				var fields []map[string]json.RawMessage
				if err := json.Unmarshal(obj["fields"], &fields); err != nil {
					return nil, fmt.Errorf("invalid fields: %w", err)
				}
				for _, f := range fields {
					if t, ok := f["type"]; ok {
						q, err := qualify(t, ns)
						if err != nil {
							return nil, err
						}
						f["type"] = q
					}
				}
				if obj["fields"], err = json.Marshal(fields); err != nil {
					return nil, err
				}
			}
		case "array", "map":
			key := "items"
			if typ == "map" {
				key = "values"
			}
			if inner, ok := obj[key]; ok {
				q, err := qualify(inner, namespace)
				if err != nil {
					return nil, err
				}
				obj[key] = q
			}
		default:
			if t, ok := obj["type"]; ok {
				q, err := qualify(t, namespace)
				if err != nil {
					return nil, err
				}
				obj["type"] = q
			}
		}
		return json.Marshal(obj)
	}

	return nil, fmt.Errorf("unsupported type %s", trimmed)
}

// qualifyName replaces the name of a named type declaration with its full name
// and returns the namespace its members resolve in. Aliases are qualified too.
func qualifyName(obj map[string]json.RawMessage, enclosingNS string) (string, error) {
	var name, namespace string
	if err := unmarshalOptional(obj["name"], &name); err != nil || name == "" {
		return "", fmt.Errorf("named type without name")
	}
	_, declared := obj["namespace"]
	if err := unmarshalOptional(obj["namespace"], &namespace); err != nil {
		return "", fmt.Errorf("%s: invalid namespace: %w", name, err)
	}

	full := name
	switch i := strings.LastIndexByte(name, '.'); {
	case i >= 0:
		namespace = name[:i]
	case !declared:
		namespace = enclosingNS
		fallthrough
	default:
		if namespace != "" {
			full = namespace + "." + name
		}
	}

	obj["name"], _ = json.Marshal(full)
	if namespace == "" {
		obj["namespace"] = json.RawMessage(`""`)
	} else {
		delete(obj, "namespace")
	}

	if raw, ok := obj["aliases"]; ok {
		var aliases []string
		if err := json.Unmarshal(raw, &aliases); err == nil {
			for i, a := range aliases {
				if namespace != "" && !strings.Contains(a, ".") {
					aliases[i] = namespace + "." + a
				}
			}
			obj["aliases"], _ = json.Marshal(aliases)
		}
	}
	return namespace, nil
}

func (p *parser) lookup(ref, namespace string) *Schema {
	if s, ok := p.names[ref]; ok {
		return s
	}
	if namespace != "" && !strings.Contains(ref, ".") {
		return p.names[namespace+"."+ref]
	}
	return nil
}

func unmarshalOptional(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
