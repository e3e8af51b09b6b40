package silver

import (
	"context"
	"testing"

	"github.com/edgeflare/silver/pkg/config"
	"github.com/edgeflare/silver/pkg/pipeline"
	"github.com/edgeflare/silver/pkg/serde"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	c, err := config.Decode(v)
	require.NoError(t, err)
	c.Bronze.Topics = []string{"raw-TB_CB_LPCO"}
	return c
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = newLogger("none")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))

	_, err = newLogger("loud")
	assert.Error(t, err)
}

func TestSinkConfig(t *testing.T) {
	c := testConfig(t)
	c.Kafka.Brokers = []string{"broker:9092"}

	m, err := sinkConfig(c)
	require.NoError(t, err)
	assert.Equal(t, []any{"broker:9092"}, m["brokers"])
	assert.Equal(t, "debezium-to-silver-producer", m["clientID"])

	c.Sink.Config = map[string]any{"brokers": []any{"other:9092"}}
	m, err = sinkConfig(c)
	require.NoError(t, err)
	assert.Equal(t, []any{"other:9092"}, m["brokers"])

	c.Sink = config.SinkConfig{Connector: pipeline.ConnectorDebug}
	m, err = sinkConfig(c)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestNewSerdes(t *testing.T) {
	c := testConfig(t)

	des, ser, err := newSerdes(c, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &serde.AvroDeserializer{}, des)
	assert.IsType(t, &serde.AvroSerializer{}, ser)

	c.ValueFormat = serde.FormatJSON
	des, ser, err = newSerdes(c, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, serde.JSONDeserializer{}, des)
	assert.IsType(t, serde.JSONSerializer{}, ser)

	c.ValueFormat = serde.FormatAvro
	c.Registry.Flavor = "unknown"
	_, _, err = newSerdes(c, zap.NewNop())
	assert.Error(t, err)
}

func TestWiringUnknownSink(t *testing.T) {
	c := testConfig(t)
	c.ValueFormat = serde.FormatJSON
	c.Sink.Connector = "carrier-pigeon"

	_, err := wiring(c, zap.NewNop())(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrUnknownConnector)
}
