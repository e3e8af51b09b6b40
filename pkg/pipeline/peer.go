package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Peer is a destination with an associated connector (ie Kafka, NATS).
type Peer struct {
	Name          string `mapstructure:"name"`
	ConnectorName string `mapstructure:"connector"`
	// Config contains the connection config of underlying library
	// eg brokers and SASL settings for Kafka, servers and stream for NATS
	Config map[string]any `mapstructure:"config"`
	// Extra arguments for Connect
	Args []any
}

// connectDelays are waited between failed connection attempts.
var connectDelays = []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second}

// Connect creates the peer's connector and connects it, retrying a few times
// before giving up.
func (p *Peer) Connect(ctx context.Context, logger *zap.Logger) (Connector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	connector, err := NewConnector(p.ConnectorName)
	if err != nil {
		return nil, err
	}

	configJSON, err := json.Marshal(p.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config for peer %s: %w", p.Name, err)
	}

	logger.Debug("Connecting peer",
		zap.String("name", p.Name),
		zap.String("connector", p.ConnectorName))

	err = connector.Connect(configJSON, p.Args...)
	for _, delay := range connectDelays {
		if err == nil {
			break
		}
		logger.Warn("Retrying connection",
			zap.String("name", p.Name),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		err = connector.Connect(configJSON, p.Args...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize connector %s: %w", p.Name, err)
	}

	logger.Info("Successfully connected peer",
		zap.String("name", p.Name),
		zap.String("connector", p.ConnectorName))
	return connector, nil
}
