package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromEnv(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	require.NoError(t, BindEnv(v))
	cfg, err := Decode(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := fromEnv(t)

	assert.Equal(t, "debezium-to-silver", cfg.ApplicationID)
	assert.Equal(t, "avro", cfg.ValueFormat)
	assert.Empty(t, cfg.Bronze.Topics)
	assert.Equal(t, "silver.", cfg.Silver.TopicPrefix)
	assert.Equal(t, "", cfg.Silver.StripPrefix)
	assert.Equal(t, "full", cfg.Silver.NameStyle)
	assert.False(t, cfg.Silver.Approved)
	assert.Equal(t, "silver", cfg.Iceberg.Namespace)
	assert.Equal(t, "silver", cfg.RecordNamespace())
	assert.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "earliest", cfg.Kafka.AutoOffsetReset)
	assert.Equal(t, 10*time.Second, cfg.Kafka.SessionTimeout)
	assert.Equal(t, "http://apicurio:8080/apis/registry/v2", cfg.Registry.URL)
	assert.Equal(t, "debezium", cfg.Registry.BronzeGroupID)
	assert.Equal(t, "debezium-silver", cfg.Registry.SilverGroupID)
	assert.Equal(t, "kafka", cfg.Sink.Connector)

	assert.ErrorIs(t, cfg.Validate(), ErrNoTopics)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BRONZE_TOPICS", " raw-TB_CB_LPCO, raw-TB_CB_LPCO_CMDT ,,")
	t.Setenv("SILVER_TOPIC_PREFIX", "lake.")
	t.Setenv("SILVER_STRIP_PREFIX", "bronze.")
	t.Setenv("SILVER_NAME_STYLE", "last-segment")
	t.Setenv("ICEBERG_NAMESPACE", "gold")
	t.Setenv("SILVER_RECORD_NAMESPACE", "silver.oracle_esw")
	t.Setenv("SILVER_APPROVED", "YES")
	t.Setenv("BOOTSTRAP_SERVERS", "k1:9092,k2:9092")
	t.Setenv("APICURIO_GROUP_ID", "cdc")

	cfg := fromEnv(t)
	assert.Equal(t, []string{"raw-TB_CB_LPCO", "raw-TB_CB_LPCO_CMDT"}, cfg.Bronze.Topics)
	assert.Equal(t, "lake.", cfg.Silver.TopicPrefix)
	assert.Equal(t, "bronze.", cfg.Silver.StripPrefix)
	assert.Equal(t, "last-segment", cfg.Silver.NameStyle)
	assert.Equal(t, "gold", cfg.Iceberg.Namespace)
	assert.Equal(t, "silver.oracle_esw", cfg.RecordNamespace())
	assert.True(t, cfg.Silver.Approved)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "cdc", cfg.Registry.BronzeGroupID)
	assert.Equal(t, "cdc-silver", cfg.Registry.SilverGroupID)
	assert.NoError(t, cfg.Validate())
}

func TestGroupIDPrecedence(t *testing.T) {
	t.Setenv("APICURIO_GROUP_ID", "shared")
	t.Setenv("BRONZE_APICURIO_GROUP_ID", "bronze")
	t.Setenv("SILVER_APICURIO_GROUP_ID", "silver")

	cfg := fromEnv(t)
	assert.Equal(t, "bronze", cfg.Registry.BronzeGroupID)
	assert.Equal(t, "silver", cfg.Registry.SilverGroupID)
}

func TestApprovedTruthiness(t *testing.T) {
	for value, want := range map[string]bool{
		"true": true, "True": true, "yes": true, "1": true,
		"false": false, "no": false, "0": false, "on": false,
	} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("SILVER_APPROVED", value)
			assert.Equal(t, want, fromEnv(t).Silver.Approved)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := fromEnv(t)
		cfg.Bronze.Topics = []string{"raw-X"}
		return cfg
	}

	cfg := base()
	cfg.ValueFormat = "protobuf"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Registry.Flavor = "glue"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.ValueFormat = "json"
	cfg.Registry.URL = ""
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Registry.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Sink.Connector = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bronze:
  topics: [raw-TB_CB_LPCO]
silver:
  approved: yes
  bindUnclaimed: true
valueFormat: json
sink:
  connector: nats
  config:
    servers: [nats://localhost:4222]
    stream: SILVER
`), 0o600))

	t.Setenv("SILVER_TOPIC_PREFIX", "env.")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"raw-TB_CB_LPCO"}, cfg.Bronze.Topics)
	assert.True(t, cfg.Silver.Approved)
	assert.True(t, cfg.Silver.BindUnclaimed)
	assert.Equal(t, "json", cfg.ValueFormat)
	assert.Equal(t, "env.", cfg.Silver.TopicPrefix)
	assert.Equal(t, "nats", cfg.Sink.Connector)
	assert.Equal(t, "SILVER", cfg.Sink.Config["stream"])

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
