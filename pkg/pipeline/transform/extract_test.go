package transform

import (
	"testing"

	"github.com/edgeflare/silver/internal/testutil"
	"github.com/edgeflare/silver/pkg/row"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSchema(t *testing.T, file string) *row.Schema {
	t.Helper()
	data, err := testutil.LoadFile(file)
	require.NoError(t, err)
	s, err := row.Parse(string(data))
	require.NoError(t, err)
	return s
}

func TestExtractAfter(t *testing.T) {
	envelope := loadSchema(t, "envelope.avsc")
	value := "esw.ESW.TB_CB_LPCO.Value"

	testCases := []struct {
		name    string
		native  map[string]any
		wantNil bool
		wantID  int64
	}{
		{
			name: "create",
			native: map[string]any{
				"before": nil,
				"after":  map[string]any{value: map[string]any{"ID": int64(1), "NAME": "x"}},
				"op":     "c",
			},
			wantID: 1,
		},
		{
			name: "update",
			native: map[string]any{
				"before": map[string]any{value: map[string]any{"ID": int64(2), "NAME": "old"}},
				"after":  map[string]any{value: map[string]any{"ID": int64(2), "NAME": "new"}},
				"op":     "u",
			},
			wantID: 2,
		},
		{
			name: "delete",
			native: map[string]any{
				"before": map[string]any{value: map[string]any{"ID": int64(3)}},
				"after":  nil,
				"op":     "d",
			},
			wantNil: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			after := ExtractAfter(row.FromNative(envelope, tc.native))
			if tc.wantNil {
				assert.Nil(t, after)
				return
			}
			require.NotNil(t, after)
			assert.Equal(t, value, after.Schema.FullName())
			assert.Equal(t, tc.wantID, after.Get("ID"))
		})
	}
}

func TestExtractAfterNoEnvelope(t *testing.T) {
	assert.Nil(t, ExtractAfter(nil))

	plain, err := row.Parse(`{"type":"record","name":"Plain","fields":[{"name":"ID","type":"long"}]}`)
	require.NoError(t, err)
	assert.Nil(t, ExtractAfter(row.FromNative(plain, map[string]any{"ID": int64(1)})))
}

func TestExtractAfterPayloadWrapper(t *testing.T) {
	wrapper := loadSchema(t, "wrapped-envelope.avsc")

	rec := row.FromNative(wrapper, map[string]any{
		"payload": map[string]any{
			"before": nil,
			"after":  map[string]any{"esw.ESW.TB_CB_LPCO.Value": map[string]any{"ID": int64(9)}},
			"op":     "c",
		},
	})

	after := ExtractAfter(rec)
	require.NotNil(t, after)
	assert.Equal(t, int64(9), after.Get("ID"))
}

func TestExtractAfterJSON(t *testing.T) {
	data, err := testutil.LoadFile("cdc.json")
	require.NoError(t, err)
	rec, err := row.FromJSON(data)
	require.NoError(t, err)

	after := ExtractAfter(rec)
	require.NotNil(t, after)
	assert.Equal(t, []string{"ID", "NAME", "EMAIL"}, after.Schema.FieldNames())

	deleted, err := row.FromJSON([]byte(`{"payload":{"before":{"ID":1},"after":null,"op":"d"}}`))
	require.NoError(t, err)
	assert.Nil(t, ExtractAfter(deleted))
}

func TestExtractAfterUnwrapsOnce(t *testing.T) {
	rec, err := row.FromJSON([]byte(`{"payload":{"payload":{"after":{"ID":1}}}}`))
	require.NoError(t, err)
	assert.Nil(t, ExtractAfter(rec))
}
