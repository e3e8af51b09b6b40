package transform

import (
	"encoding/json"
	"strings"

	"github.com/edgeflare/silver/pkg/row"
	"github.com/puzpuzpuz/xsync/v3"
)

// RoutingField is the field prepended to every silver record. It carries the
// destination table identifier the lake sink routes on.
const RoutingField = "__iceberg_table"

// SchemaCache derives and memoizes silver schemas from source row schemas.
//
// Entries are keyed by target namespace, target name and the source schema's
// full name, and are never evicted. A source schema that changes its fields
// while keeping its full name keeps resolving to the first derivation.
type SchemaCache struct {
	schemas *xsync.MapOf[string, *row.Schema]
}

// NewSchemaCache returns an empty cache.
func NewSchemaCache() *SchemaCache {
	return &SchemaCache{schemas: xsync.NewMapOf[string, *row.Schema]()}
}

// Derive returns the silver schema for rows shaped like src, published as
// namespace.name. Concurrent callers with the same key all get the same
// instance: a candidate is built outside the map and only the first one stored
// wins.
func (c *SchemaCache) Derive(src *row.Record, namespace, name string) *row.Schema {
	key := namespace + ":" + name + ":" + src.Schema.FullName()
	if s, ok := c.schemas.Load(key); ok {
		return s
	}

	candidate := DeriveSchema(src.Schema, namespace, name)
	actual, _ := c.schemas.LoadOrStore(key, candidate)
	return actual
}

// Len returns the number of cached derivations.
func (c *SchemaCache) Len() int {
	return c.schemas.Size()
}

// DeriveSchema builds a silver schema without caching: the routing field
// followed by every source field, lowercased, in source order. Types, docs,
// defaults and custom properties are kept.
func DeriveSchema(src *row.Schema, namespace, name string) *row.Schema {
	fields := make([]row.Field, 0, src.Len()+1)
	fields = append(fields, row.Field{
		Name: RoutingField,
		Type: json.RawMessage(`"string"`),
	})
	for _, f := range src.Fields {
		out := f
		out.Name = strings.ToLower(f.Name)
		if len(f.Props) > 0 {
			out.Props = make(map[string]json.RawMessage, len(f.Props))
			for k, v := range f.Props {
				out.Props[k] = v
			}
		}
		fields = append(fields, out)
	}

	connectName, _ := json.Marshal(namespace + "." + name)
	return row.NewSchema(name, namespace, fields, map[string]json.RawMessage{
		"connect.name":    connectName,
		"connect.version": json.RawMessage(`1`),
	})
}
