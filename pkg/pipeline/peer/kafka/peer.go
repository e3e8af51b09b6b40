package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/edgeflare/silver/pkg/pipeline"
	"go.uber.org/zap"
)

// PeerKafka implements the sink for Kafka
type PeerKafka struct {
	producer sarama.SyncProducer
	admin    sarama.ClusterAdmin
	config   *Config
	logger   *zap.Logger

	mu      sync.Mutex
	ensured map[string]bool
}

// Connect creates the producer. Args may carry a *zap.Logger.
func (p *PeerKafka) Connect(config json.RawMessage, args ...any) error {
	var cfg Config
	if len(config) > 0 && string(config) != "null" {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("failed to unmarshal Kafka config: %w", err)
		}
	}
	p.logger = loggerFromArgs(args)

	client := NewClient(&cfg, p.logger)
	producer, err := client.CreateProducer()
	if err != nil {
		return err
	}

	var admin sarama.ClusterAdmin
	if cfg.CreateTopics {
		admin, err = client.newClusterAdmin()
		if err != nil {
			producer.Close()
			return err
		}
	}

	p.init(producer, admin, &cfg)
	return nil
}

// NewPeer returns a connected peer over an existing producer. admin may be
// nil when topics are not created.
func NewPeer(producer sarama.SyncProducer, admin sarama.ClusterAdmin, cfg *Config, logger *zap.Logger) *PeerKafka {
	p := &PeerKafka{logger: logger}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	cfg.setDefaults()
	p.init(producer, admin, cfg)
	return p
}

func (p *PeerKafka) init(producer sarama.SyncProducer, admin sarama.ClusterAdmin, cfg *Config) {
	p.producer = producer
	p.admin = admin
	p.config = cfg
	p.ensured = map[string]bool{}
}

func (p *PeerKafka) Pub(_ context.Context, msg pipeline.Message) error {
	if p.producer == nil {
		return pipeline.ErrNotConnected
	}

	if err := p.ensureTopic(msg.Topic); err != nil {
		return err
	}

	pm := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Value:     sarama.ByteEncoder(msg.Value),
		Timestamp: msg.Timestamp,
	}
	if msg.Key != nil {
		pm.Key = sarama.ByteEncoder(msg.Key)
	}

	partition, offset, err := p.producer.SendMessage(pm)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("Published message",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return nil
}

func (p *PeerKafka) ensureTopic(topic string) error {
	if p.admin == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ensured[topic] {
		return nil
	}
	if err := ensureTopics(p.admin, p.config, p.logger, topic); err != nil {
		return err
	}
	p.ensured[topic] = true
	return nil
}

func (p *PeerKafka) Disconnect() error {
	var err error
	if p.admin != nil {
		err = p.admin.Close()
	}
	if p.producer != nil {
		if perr := p.producer.Close(); perr != nil {
			err = perr
		}
	}
	return err
}

func loggerFromArgs(args []any) *zap.Logger {
	for _, a := range args {
		if l, ok := a.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.NewNop()
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorKafka, func() pipeline.Connector { return &PeerKafka{} })
}
