// Package cdc holds the Debezium change-event vocabulary: operation codes and
// the envelope field names.
package cdc

import (
	"encoding/json"

	"github.com/edgeflare/silver/pkg/row"
)

// Envelope field names.
const (
	FieldPayload = "payload"
	FieldBefore  = "before"
	FieldAfter   = "after"
	FieldSource  = "source"
	FieldOp      = "op"
)

// Operation represents the type of change that occurred
type Operation string

const (
	OpCreate   Operation = "c"
	OpUpdate   Operation = "u"
	OpDelete   Operation = "d"
	OpRead     Operation = "r"
	OpTruncate Operation = "t"
	OpUnknown  Operation = "?"
)

// String returns the long name of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpRead:
		return "read"
	case OpTruncate:
		return "truncate"
	}
	return "unknown"
}

// OperationOf reads the operation code of an envelope record, looking one
// "payload" level down when the envelope is wrapped.
func OperationOf(envelope *row.Record) Operation {
	if envelope == nil {
		return OpUnknown
	}
	if payload, ok := envelope.Record(FieldPayload); ok {
		envelope = payload
	}
	var op string
	switch v := envelope.Get(FieldOp).(type) {
	case string:
		op = v
	case json.RawMessage:
		_ = json.Unmarshal(v, &op)
	}
	switch Operation(op) {
	case OpCreate, OpUpdate, OpDelete, OpRead, OpTruncate:
		return Operation(op)
	}
	return OpUnknown
}
