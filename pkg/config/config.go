package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/edgeflare/silver/pkg/pipeline/route"
	"github.com/edgeflare/silver/pkg/serde"
	"github.com/edgeflare/silver/pkg/util"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X github.com/edgeflare/silver/pkg/config.Version=..."
var Version = "dev"

var (
	ErrNoTopics = errors.New("no input topics configured, set BRONZE_TOPICS=topic1,topic2,...")
)

// Config holds application-wide configuration
type Config struct {
	ApplicationID string         `mapstructure:"applicationID"`
	ValueFormat   string         `mapstructure:"valueFormat"`
	Bronze        BronzeConfig   `mapstructure:"bronze"`
	Silver        SilverConfig   `mapstructure:"silver"`
	Iceberg       IcebergConfig  `mapstructure:"iceberg"`
	Kafka         KafkaConfig    `mapstructure:"kafka"`
	Registry      RegistryConfig `mapstructure:"registry"`
	Sink          SinkConfig     `mapstructure:"sink"`
	Metrics       MetricsConfig  `mapstructure:"metrics"`
}

type BronzeConfig struct {
	// Topics enables the bindings consuming from these topics.
	Topics []string `mapstructure:"topics"`
}

type SilverConfig struct {
	TopicPrefix string `mapstructure:"topicPrefix"`
	StripPrefix string `mapstructure:"stripPrefix"`
	NameStyle   string `mapstructure:"nameStyle"`
	// RecordNamespace is the Avro namespace of silver records. Empty means Iceberg.Namespace.
	RecordNamespace string `mapstructure:"recordNamespace"`
	// Approved lifts the dry-run gate.
	Approved bool `mapstructure:"approved"`
	// BindUnclaimed binds enabled topics no source task declares.
	BindUnclaimed bool `mapstructure:"bindUnclaimed"`
}

type IcebergConfig struct {
	Namespace string `mapstructure:"namespace"`
}

type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	Version         string        `mapstructure:"version"`
	AutoOffsetReset string        `mapstructure:"autoOffsetReset"`
	CreateTopics    bool          `mapstructure:"createTopics"`
	Partitions      int32         `mapstructure:"partitions"`
	Replicas        int16         `mapstructure:"replicas"`
	SessionTimeout  time.Duration `mapstructure:"sessionTimeout"`
	SASL            SASLConfig    `mapstructure:"sasl"`
	TLS             TLSConfig     `mapstructure:"tls"`
}

type SASLConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Mechanism string `mapstructure:"mechanism"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
}

type TLSConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	InsecureSkipVerify bool `mapstructure:"insecureSkipVerify"`
}

type RegistryConfig struct {
	URL           string        `mapstructure:"url"`
	Flavor        string        `mapstructure:"flavor"`
	BronzeGroupID string        `mapstructure:"bronzeGroupID"`
	SilverGroupID string        `mapstructure:"silverGroupID"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// SinkConfig selects the connector silver records are published with. Config
// is handed to the connector as JSON.
type SinkConfig struct {
	Connector string         `mapstructure:"connector"`
	Config    map[string]any `mapstructure:"config"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// env lists the environment variables bound to each key, in lookup order.
var env = map[string][]string{
	"applicationID":          {"APPLICATION_ID"},
	"valueFormat":            {"VALUE_FORMAT"},
	"bronze.topics":          {"BRONZE_TOPICS"},
	"silver.topicPrefix":     {"SILVER_TOPIC_PREFIX"},
	"silver.stripPrefix":     {"SILVER_STRIP_PREFIX"},
	"silver.nameStyle":       {"SILVER_NAME_STYLE"},
	"silver.recordNamespace": {"SILVER_RECORD_NAMESPACE"},
	"silver.approved":        {"SILVER_APPROVED"},
	"silver.bindUnclaimed":   {"SILVER_BIND_UNCLAIMED"},
	"iceberg.namespace":      {"ICEBERG_NAMESPACE"},
	"kafka.brokers":          {"BOOTSTRAP_SERVERS"},
	"kafka.version":          {"KAFKA_VERSION"},
	"kafka.autoOffsetReset":  {"AUTO_OFFSET_RESET"},
	"kafka.createTopics":     {"KAFKA_CREATE_TOPICS"},
	"kafka.sasl.enabled":     {"KAFKA_SASL_ENABLED"},
	"kafka.sasl.mechanism":   {"KAFKA_SASL_MECHANISM"},
	"kafka.sasl.user":        {"KAFKA_SASL_USER"},
	"kafka.sasl.password":    {"KAFKA_SASL_PASSWORD"},
	"kafka.tls.enabled":      {"KAFKA_TLS_ENABLED"},
	"registry.url":           {"APICURIO_URL", "SCHEMA_REGISTRY_URL"},
	"registry.flavor":        {"REGISTRY_FLAVOR"},
	"registry.bronzeGroupID": {"BRONZE_APICURIO_GROUP_ID", "APICURIO_GROUP_ID"},
	"registry.silverGroupID": {"SILVER_APICURIO_GROUP_ID"},
	"sink.connector":         {"SINK_CONNECTOR"},
	"metrics.enabled":        {"METRICS_ENABLED"},
	"metrics.addr":           {"METRICS_ADDR"},
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("applicationID", "debezium-to-silver")
	v.SetDefault("valueFormat", serde.FormatAvro)
	v.SetDefault("bronze.topics", []string{})
	v.SetDefault("silver.topicPrefix", "silver.")
	v.SetDefault("silver.stripPrefix", "")
	v.SetDefault("silver.nameStyle", string(route.NameStyleFull))
	v.SetDefault("silver.recordNamespace", "")
	v.SetDefault("silver.approved", false)
	v.SetDefault("silver.bindUnclaimed", false)
	v.SetDefault("iceberg.namespace", route.DefaultNamespace)
	v.SetDefault("kafka.brokers", []string{"kafka:9092"})
	v.SetDefault("kafka.version", "3.6.0")
	v.SetDefault("kafka.autoOffsetReset", "earliest")
	v.SetDefault("kafka.createTopics", false)
	v.SetDefault("kafka.partitions", 1)
	v.SetDefault("kafka.replicas", 1)
	v.SetDefault("kafka.sessionTimeout", 10*time.Second)
	v.SetDefault("kafka.sasl.enabled", false)
	v.SetDefault("kafka.sasl.mechanism", "SCRAM-SHA-512")
	v.SetDefault("kafka.tls.enabled", false)
	v.SetDefault("registry.url", "http://apicurio:8080/apis/registry/v2")
	v.SetDefault("registry.flavor", serde.FlavorApicurio)
	v.SetDefault("registry.bronzeGroupID", "debezium")
	v.SetDefault("registry.silverGroupID", "")
	v.SetDefault("registry.timeout", 5*time.Second)
	v.SetDefault("sink.connector", "kafka")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9100")
}

// BindEnv binds every key to its environment variables.
func BindEnv(v *viper.Viper) error {
	for key, names := range env {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Load reads config from file or environment
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("silver")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	}

	return Decode(v)
}

// Decode unmarshals v into a Config and fills derived defaults.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		csvHook,
		truthyHook,
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Registry.SilverGroupID == "" {
		cfg.Registry.SilverGroupID = cfg.Registry.BronzeGroupID + "-silver"
	}
	return &cfg, nil
}

// Validate reports configuration the process cannot start with.
func (c *Config) Validate() error {
	if len(c.Bronze.Topics) == 0 {
		return ErrNoTopics
	}

	switch strings.ToLower(c.ValueFormat) {
	case serde.FormatAvro:
		if c.Registry.URL == "" {
			return fmt.Errorf("registry.url is required for %s values", serde.FormatAvro)
		}
		switch strings.ToLower(c.Registry.Flavor) {
		case serde.FlavorApicurio, serde.FlavorConfluent:
		default:
			return fmt.Errorf("unknown registry.flavor %q", c.Registry.Flavor)
		}
	case serde.FormatJSON:
	default:
		return fmt.Errorf("unknown valueFormat %q", c.ValueFormat)
	}

	if c.Sink.Connector == "" {
		return fmt.Errorf("sink.connector is required")
	}
	return nil
}

// RecordNamespace returns the Avro namespace of silver records.
func (c *Config) RecordNamespace() string {
	if c.Silver.RecordNamespace != "" {
		return c.Silver.RecordNamespace
	}
	return c.Iceberg.Namespace
}

// csvHook decodes comma separated strings into string slices.
func csvHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
		return data, nil
	}
	return util.SplitCSV(data.(string)), nil
}

// truthyHook decodes strings into booleans the way SILVER_APPROVED is read:
// true, yes and 1 are true, anything else is false.
func truthyHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
		return data, nil
	}
	return util.IsTruthy(data.(string)), nil
}
