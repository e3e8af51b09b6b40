package transform

import (
	"encoding/json"
	"testing"

	"github.com/edgeflare/silver/pkg/row"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject(t *testing.T) {
	src := sourceRow(t)
	schema := DeriveSchema(src.Schema, "silver", "tb_cb_lpco")

	out := Project(src, schema, "silver.tb_cb_lpco")
	require.Len(t, out.Values, 4)
	assert.Same(t, schema, out.Schema)
	assert.Equal(t, "silver.tb_cb_lpco", out.Get(RoutingField))
	assert.Equal(t, int64(1), out.Get("id"))
	assert.Equal(t, "x", out.Get("name"))
	assert.Equal(t, map[string]any{"long": int64(1700000000000)}, out.Get("issued_at"))

	// the source row is left untouched
	assert.Equal(t, int64(1), src.Get("ID"))
	assert.Nil(t, src.Get(RoutingField))
}

func TestProjectJSON(t *testing.T) {
	env, err := row.FromJSON([]byte(`{"after":{"ID":1,"NAME":"x"},"op":"c"}`))
	require.NoError(t, err)
	after := ExtractAfter(env)
	require.NotNil(t, after)

	schema := NewSchemaCache().Derive(after, "silver", "tb_cb_lpco")
	out := Project(after, schema, "silver.tb_cb_lpco")

	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Equal(t, `{"__iceberg_table":"silver.tb_cb_lpco","id":1,"name":"x"}`, string(b))
}
