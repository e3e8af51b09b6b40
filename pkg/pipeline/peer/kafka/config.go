package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/edgeflare/silver/pkg/config"
	"github.com/google/uuid"
)

// Config represents Kafka-specific configuration
type Config struct {
	Brokers          []string `json:"brokers"`
	Version          string   `json:"version,omitempty"`
	ClientID         string   `json:"clientID,omitempty"`
	AutoOffsetReset  string   `json:"autoOffsetReset,omitempty"`
	SessionTimeoutMS int64    `json:"sessionTimeoutMs,omitempty"`
	CreateTopics     bool     `json:"createTopics,omitempty"`
	Partitions       int32    `json:"partitions,omitempty"`
	Replicas         int16    `json:"replicas,omitempty"`
	RetentionMS      int64    `json:"retentionMs,omitempty"`
	SASL             *SASL    `json:"sasl,omitempty"`
	TLS              TLS      `json:"tls,omitempty"`
}

// SASL represents SASL authentication configuration
type SASL struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Algorithm string `json:"algorithm"` // sha512, sha256 or plain
	Enable    bool   `json:"enable"`
}

// TLS represents TLS configuration
type TLS struct {
	CertFile   string `json:"certFile,omitempty"`
	KeyFile    string `json:"keyFile,omitempty"`
	CAFile     string `json:"caFile,omitempty"`
	Enable     bool   `json:"enable,omitempty"`
	SkipVerify bool   `json:"skipVerify,omitempty"`
}

// FromConfig converts the application's Kafka settings. clientID names the
// consumer group and prefixes the client id.
func FromConfig(cfg config.KafkaConfig, clientID string) *Config {
	c := &Config{
		Brokers:          cfg.Brokers,
		Version:          cfg.Version,
		ClientID:         clientID,
		AutoOffsetReset:  cfg.AutoOffsetReset,
		SessionTimeoutMS: cfg.SessionTimeout.Milliseconds(),
		CreateTopics:     cfg.CreateTopics,
		Partitions:       cfg.Partitions,
		Replicas:         cfg.Replicas,
		TLS: TLS{
			Enable:     cfg.TLS.Enabled,
			SkipVerify: cfg.TLS.InsecureSkipVerify,
		},
	}
	if cfg.SASL.Enabled {
		c.SASL = &SASL{
			Username:  cfg.SASL.User,
			Password:  cfg.SASL.Password,
			Algorithm: saslAlgorithm(cfg.SASL.Mechanism),
			Enable:    true,
		}
	}
	return c
}

func saslAlgorithm(mechanism string) string {
	switch strings.ToUpper(mechanism) {
	case sarama.SASLTypeSCRAMSHA256:
		return "sha256"
	case sarama.SASLTypePlaintext:
		return "plain"
	default:
		return "sha512"
	}
}

// setDefaults fills unset fields.
func (c *Config) setDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.Version == "" {
		c.Version = "3.6.0"
	}
	if c.ClientID == "" {
		c.ClientID = "silver"
	}
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = "earliest"
	}
	if c.Partitions == 0 {
		c.Partitions = 1
	}
	if c.Replicas == 0 {
		c.Replicas = 1
	}
}

// ToSaramaConfig converts the Config to a sarama.Config
func (c *Config) ToSaramaConfig() (*sarama.Config, error) {
	c.setDefaults()
	conf := sarama.NewConfig()

	// Set Kafka version
	version, err := sarama.ParseKafkaVersion(c.Version)
	if err != nil {
		return nil, fmt.Errorf("error parsing Kafka version: %w", err)
	}
	conf.Version = version

	// Configure SASL
	if c.SASL != nil && c.SASL.Enable {
		conf.Net.SASL.Enable = true
		conf.Net.SASL.User = c.SASL.Username
		conf.Net.SASL.Password = c.SASL.Password
		conf.Net.SASL.Handshake = true

		switch c.SASL.Algorithm {
		case "sha512":
			conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA512} }
			conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		case "sha256":
			conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA256} }
			conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		case "plain":
			conf.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		default:
			return nil, fmt.Errorf("invalid SASL algorithm: %s", c.SASL.Algorithm)
		}
	}

	// Configure TLS
	if c.TLS.Enable {
		tlsConfig, err := createTLSConfiguration(c.TLS)
		if err != nil {
			return nil, err
		}
		conf.Net.TLS.Enable = true
		conf.Net.TLS.Config = tlsConfig
	}

	// Producer
	conf.Producer.Retry.Max = 5
	conf.Producer.Retry.Backoff = time.Second
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Return.Successes = true
	conf.Producer.Return.Errors = true
	conf.Producer.Partitioner = sarama.NewHashPartitioner

	// Consumer group
	switch strings.ToLower(c.AutoOffsetReset) {
	case "earliest":
		conf.Consumer.Offsets.Initial = sarama.OffsetOldest
	case "latest":
		conf.Consumer.Offsets.Initial = sarama.OffsetNewest
	default:
		return nil, fmt.Errorf("invalid auto offset reset: %s", c.AutoOffsetReset)
	}
	if c.SessionTimeoutMS > 0 {
		conf.Consumer.Group.Session.Timeout = time.Duration(c.SessionTimeoutMS) * time.Millisecond
	}
	conf.Consumer.Return.Errors = true

	conf.ClientID = c.ClientID + "-" + uuid.NewString()[:8]
	conf.Metadata.Full = false

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sarama config: %w", err)
	}
	return conf, nil
}

func createTLSConfiguration(tlsCfg TLS) (*tls.Config, error) {
	t := &tls.Config{
		InsecureSkipVerify: tlsCfg.SkipVerify,
	}

	if tlsCfg.CertFile != "" && tlsCfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsCfg.CertFile, tlsCfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		t.Certificates = []tls.Certificate{cert}
	}

	if tlsCfg.CAFile != "" {
		caCert, err := os.ReadFile(tlsCfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		caCertPool := x509.NewCertPool()
		caCertPool.AppendCertsFromPEM(caCert)
		t.RootCAs = caCertPool
	}

	return t, nil
}

// GetBrokers returns the list of Kafka brokers
func (c *Config) GetBrokers() []string {
	return c.Brokers
}
