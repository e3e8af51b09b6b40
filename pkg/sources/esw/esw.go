// Package esw binds the Oracle ESW (electronic single window) CDC topics.
// Debezium routes every ESW table to a topic named raw-<TABLE>.
package esw

import "github.com/edgeflare/silver/pkg/pipeline"

// Source is the task's source id.
const Source = "oracle-esw"

var tables = []string{
	"TB_CB_LPCO",
	"TB_CB_LPCO_AMDT_ATTCH_DOC",
	"TB_CB_LPCO_ATTCH_DOC",
	"TB_CB_LPCO_CMDT",
	"TB_CB_LPCO_CMNT",
	"TB_CB_LPCO_CNCL_ATTCH_DOC",
	"TB_CB_LPCO_CSTMS",
	"TB_CB_LPCO_MPNG",
}

// Task returns the ESW task.
func Task() *pipeline.BindingTask {
	bindings := make([]pipeline.Binding, len(tables))
	for i, table := range tables {
		bindings[i] = pipeline.Binding{Topic: "raw-" + table, Table: table}
	}
	return &pipeline.BindingTask{ID: Source, Tables: bindings}
}
