package transform

import "github.com/edgeflare/silver/pkg/row"

// Project builds a silver record from a source row. schema must have been
// derived from src's schema: the routing value goes to field 0 and source
// value i is copied as is to field i+1.
func Project(src *row.Record, schema *row.Schema, routing string) *row.Record {
	out := row.New(schema)
	out.Values[0] = routing
	copy(out.Values[1:], src.Values)
	return out
}
