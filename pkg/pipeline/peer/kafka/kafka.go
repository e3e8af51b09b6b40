package kafka

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Client creates producers, consumer groups and admin clients from a Config.
// Topics are created by the sink on first publish, see ensureTopics.
type Client struct {
	config *Config
	logger *zap.Logger
}

// NewClient returns a Client. A nil logger discards logs.
func NewClient(config *Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: config,
		logger: logger,
	}
}

// newClusterAdmin creates a new sarama.ClusterAdmin
func (c *Client) newClusterAdmin() (sarama.ClusterAdmin, error) {
	saramaConfig, err := c.config.ToSaramaConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create sarama config: %w", err)
	}

	admin, err := sarama.NewClusterAdmin(c.config.GetBrokers(), saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster admin: %w", err)
	}

	return admin, nil
}

// CreateProducer creates a new SyncProducer
func (c *Client) CreateProducer() (sarama.SyncProducer, error) {
	conf, err := c.config.ToSaramaConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create sarama config: %w", err)
	}

	producer, err := sarama.NewSyncProducer(c.config.GetBrokers(), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	return producer, nil
}

// CreateConsumerGroup creates a consumer group named after the client id.
func (c *Client) CreateConsumerGroup() (sarama.ConsumerGroup, error) {
	conf, err := c.config.ToSaramaConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create sarama config: %w", err)
	}

	group, err := sarama.NewConsumerGroup(c.config.GetBrokers(), c.config.ClientID, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group %s: %w", c.config.ClientID, err)
	}

	c.logger.Info("Created consumer group",
		zap.String("group", c.config.ClientID),
		zap.Strings("brokers", c.config.GetBrokers()))
	return group, nil
}

func ensureTopics(admin sarama.ClusterAdmin, cfg *Config, logger *zap.Logger, topics ...string) error {
	existing, err := admin.ListTopics()
	if err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}

	for _, topic := range topics {
		if _, exists := existing[topic]; exists {
			continue
		}

		detail := &sarama.TopicDetail{
			NumPartitions:     cfg.Partitions,
			ReplicationFactor: cfg.Replicas,
		}
		if cfg.RetentionMS > 0 {
			detail.ConfigEntries = map[string]*string{
				"retention.ms": stringPtr(strconv.FormatInt(cfg.RetentionMS, 10)),
			}
		}

		err := admin.CreateTopic(topic, detail, false)
		if errors.Is(err, sarama.ErrTopicAlreadyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to create topic %s: %w", topic, err)
		}
		logger.Info("Created topic",
			zap.String("topic", topic),
			zap.Int32("partitions", cfg.Partitions),
			zap.Int16("replicas", cfg.Replicas))
	}
	return nil
}

func stringPtr(s string) *string {
	return &s
}
