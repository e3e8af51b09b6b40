package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDestinationTopic(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		destPrefix  string
		stripPrefix string
		style       NameStyle
		want        string
	}{
		{"full keeps raw marker", "raw-TB_CB_LPCO", "silver.", "", NameStyleFull, "silver.raw-TB_CB_LPCO"},
		{"full strips prefix", "bronze.orders", "silver.", "bronze.", NameStyleFull, "silver.orders"},
		{"full ignores absent strip prefix", "orders", "silver.", "bronze.", NameStyleFull, "silver.orders"},
		{"full ignores blank strip prefix", " orders", "silver.", " ", NameStyleFull, "silver. orders"},
		{"last segment", "a.b.c", "silver.", "", NameStyleLastSegment, "silver.c"},
		{"last segment without dot", "orders", "silver.", "", NameStyleLastSegment, "silver.orders"},
		{"last segment ignores strip prefix", "bronze.x.orders", "silver.", "bronze.", NameStyleLastSegment, "silver.orders"},
		{"trailing dot keeps whole name", "a.b.", "silver.", "", NameStyleLastSegment, "silver.a.b."},
		{"empty prefix", "raw-X", "", "", NameStyleFull, "raw-X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DestinationTopic(tt.source, tt.destPrefix, tt.stripPrefix, tt.style))
		})
	}
}

func TestDeriveTableName(t *testing.T) {
	assert.Equal(t, "TB_CB_LPCO", DeriveTableName("raw-TB_CB_LPCO", ""))
	assert.Equal(t, "TB_CB_LPCO", DeriveTableName("bronze.raw-TB_CB_LPCO", "bronze."))
	assert.Equal(t, "orders", DeriveTableName("bronze.orders", "bronze."))
	assert.Equal(t, "bronze.orders", DeriveTableName("bronze.orders", ""))
	assert.Equal(t, "TB-raw-X", DeriveTableName("TB-raw-X", ""))
}

func TestTableIdentifier(t *testing.T) {
	assert.Equal(t, "silver.tb_cb_lpco", TableIdentifier("silver", "TB_CB_LPCO"))
	assert.Equal(t, "silver.orders", TableIdentifier("", "Orders"))
	assert.Equal(t, "silver.orders", TableIdentifier("  \t", "Orders"))
	assert.Equal(t, "lake.ns.orders", TableIdentifier("lake.ns", "ORDERS"))
}

func TestParseNameStyle(t *testing.T) {
	assert.Equal(t, NameStyleLastSegment, ParseNameStyle("last-segment"))
	assert.Equal(t, NameStyleLastSegment, ParseNameStyle("Last-Segment"))
	assert.Equal(t, NameStyleFull, ParseNameStyle("full"))
	assert.Equal(t, NameStyleFull, ParseNameStyle(""))
	assert.Equal(t, NameStyleFull, ParseNameStyle("bogus"))
}

func TestRecordName(t *testing.T) {
	assert.Equal(t, "TB_CB_LPCO", RecordName("TB_CB_LPCO"))
	assert.Equal(t, "bronze_orders", RecordName("bronze.orders"))
	assert.Equal(t, "orders_v2", RecordName("orders-v2"))
	assert.Equal(t, "_1orders", RecordName("1orders"))
	assert.Equal(t, "_", RecordName(""))
}
