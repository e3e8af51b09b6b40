package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownConnector = errors.New("unknown connector")
	ErrNotConnected     = errors.New("connector not connected")
)

// A Connector publishes silver records to a destination.
type Connector interface {
	// Connect initializes the connector with the provided configuration.
	// The config parameter is a raw JSON message containing connector-specific settings.
	// Additional arguments can be passed via the args parameter.
	Connect(config json.RawMessage, args ...any) error

	// Pub sends msg to msg.Topic. It returns an error if the publish operation fails.
	Pub(ctx context.Context, msg Message) error

	Disconnect() error
}

// Predefined connectors
const (
	ConnectorDebug = "debug"
	ConnectorKafka = "kafka"
	ConnectorNATS  = "nats"
)

var (
	connectors   = make(map[string]func() Connector)
	connectorsMu sync.RWMutex
)

// RegisterConnector adds a new connector to the registry.
// The name parameter is used as a key to identify the connector type.
func RegisterConnector(name string, factory func() Connector) {
	connectorsMu.Lock()
	defer connectorsMu.Unlock()
	connectors[name] = factory
}

// NewConnector returns a fresh, unconnected instance of the named connector.
func NewConnector(name string) (Connector, error) {
	connectorsMu.RLock()
	factory, ok := connectors[name]
	connectorsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (registered: %v)", ErrUnknownConnector, name, Connectors())
	}
	return factory(), nil
}

// Connectors returns the registered connector names.
func Connectors() []string {
	connectorsMu.RLock()
	defer connectorsMu.RUnlock()
	names := make([]string, 0, len(connectors))
	for name := range connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
