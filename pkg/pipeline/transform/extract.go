package transform

import (
	"github.com/edgeflare/silver/pkg/pipeline/cdc"
	"github.com/edgeflare/silver/pkg/row"
)

// ExtractAfter returns the current-state row of a CDC envelope.
//
// The envelope is usually the root record (before/after/op/ts_ms/...), but
// some pipelines wrap it in a "payload" field. A single payload level is
// unwrapped, never more. Nil is returned when there is no envelope, no "after"
// field, or "after" is not a record; deletes carry a null "after" and are
// therefore dropped.
func ExtractAfter(envelope *row.Record) *row.Record {
	if envelope == nil || envelope.Schema == nil {
		return nil
	}

	if _, wrapped := envelope.Schema.Field(cdc.FieldPayload); wrapped {
		if payload, ok := envelope.Record(cdc.FieldPayload); ok {
			envelope = payload
		}
	}

	if _, ok := envelope.Schema.Field(cdc.FieldAfter); !ok {
		return nil
	}

	after, ok := envelope.Record(cdc.FieldAfter)
	if !ok {
		return nil
	}
	return after
}
