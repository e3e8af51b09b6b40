package nats

import (
	"cmp"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/edgeflare/silver/pkg/pipeline"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	HeaderKey       = "Silver-Key"
	HeaderTimestamp = "Silver-Timestamp"
)

// publisher is the part of nats.JetStreamContext the sink uses.
type publisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// PeerNATS implements the sink for NATS JetStream
type PeerNATS struct {
	nc     *nats.Conn
	js     publisher
	logger *zap.Logger
	Config Config
}

// Config represents NATS configuration
type Config struct {
	Servers       []string `json:"servers"`
	Stream        string   `json:"stream"`
	Subjects      []string `json:"subjects"`
	SubjectPrefix string   `json:"subjectPrefix"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"password,omitempty"`
	TLS           struct {
		Enabled  bool   `json:"enabled"`
		CertFile string `json:"certFile,omitempty"`
		KeyFile  string `json:"keyFile,omitempty"`
		CAFile   string `json:"caFile,omitempty"`
	} `json:"tls,omitempty"`
}

func (c *Config) setDefaults() {
	if len(c.Servers) == 0 {
		c.Servers = []string{nats.DefaultURL}
	}
	c.Stream = cmp.Or(c.Stream, "silver")
	if len(c.Subjects) == 0 {
		if c.SubjectPrefix != "" {
			c.Subjects = []string{c.SubjectPrefix + ".>"}
		} else {
			c.Subjects = []string{"silver.>"}
		}
	}
}

// Subject returns the subject a record for topic is published on.
func (c *Config) Subject(topic string) string {
	if c.SubjectPrefix == "" {
		return topic
	}
	return c.SubjectPrefix + "." + topic
}

// Connect establishes a connection to the NATS server. Args may carry a
// *zap.Logger.
func (p *PeerNATS) Connect(config json.RawMessage, args ...any) error {
	if len(config) > 0 && string(config) != "null" {
		if err := json.Unmarshal(config, &p.Config); err != nil {
			return fmt.Errorf("unmarshal NATS config: %w", err)
		}
	}
	p.Config.setDefaults()
	p.logger = zap.NewNop()
	for _, a := range args {
		if l, ok := a.(*zap.Logger); ok && l != nil {
			p.logger = l
		}
	}

	opts := defaultOptions(p.Config)

	// Connect to first available server
	var err error
	for _, server := range p.Config.Servers {
		p.nc, err = nats.Connect(server, opts...)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("connect to NATS server: %w", err)
	}

	js, err := p.nc.JetStream()
	if err != nil {
		p.nc.Close()
		return fmt.Errorf("create JetStream context: %w", err)
	}

	if err := p.ensureStream(js); err != nil {
		p.nc.Close()
		return fmt.Errorf("ensure stream: %w", err)
	}

	p.js = js
	return nil
}

// Pub publishes a silver record on the subject of its topic.
func (p *PeerNATS) Pub(ctx context.Context, msg pipeline.Message) error {
	if p.js == nil {
		return pipeline.ErrNotConnected
	}

	m := newMsg(p.Config.Subject(msg.Topic), msg)
	if _, err := p.js.PublishMsg(m, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	p.logger.Debug("Published message", zap.String("subject", m.Subject))
	return nil
}

func newMsg(subject string, msg pipeline.Message) *nats.Msg {
	m := nats.NewMsg(subject)
	m.Data = msg.Value
	if msg.Key != nil {
		m.Header.Set(HeaderKey, base64.StdEncoding.EncodeToString(msg.Key))
	}
	if !msg.Timestamp.IsZero() {
		m.Header.Set(HeaderTimestamp, msg.Timestamp.UTC().Format(time.RFC3339Nano))
	}
	return m
}

// Disconnect drains and closes the NATS connection
func (p *PeerNATS) Disconnect() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	if errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}

// ensureStream creates or updates the stream
func (p *PeerNATS) ensureStream(js nats.JetStreamContext) error {
	config := &nats.StreamConfig{
		Name:     p.Config.Stream,
		Subjects: p.Config.Subjects,
		Storage:  nats.FileStorage,
		Replicas: 1,
	}

	stream, err := js.StreamInfo(p.Config.Stream)
	if err == nil {
		if !streamConfigEqual(stream.Config, *config) {
			if _, err = js.UpdateStream(config); err != nil {
				return fmt.Errorf("update stream: %w", err)
			}
			p.logger.Info("Updated stream", zap.String("stream", p.Config.Stream))
		}
		return nil
	}

	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("get stream info: %w", err)
	}

	if _, err := js.AddStream(config); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	p.logger.Info("Created stream", zap.String("stream", p.Config.Stream), zap.Strings("subjects", p.Config.Subjects))
	return nil
}

// streamConfigEqual checks if two nats.StreamConfig are equivalent
func streamConfigEqual(a, b nats.StreamConfig) bool {
	return a.Name == b.Name &&
		a.Storage == b.Storage &&
		a.Replicas == b.Replicas &&
		slices.Equal(a.Subjects, b.Subjects)
}

func defaultOptions(c Config) []nats.Option {
	opts := []nats.Option{
		nats.Timeout(5 * time.Second),
		nats.PingInterval(10 * time.Second),
		nats.MaxPingsOutstanding(3),
		nats.MaxReconnects(-1),
	}

	if c.Username != "" && c.Password != "" {
		opts = append(opts, nats.UserInfo(c.Username, c.Password))
	}

	if c.TLS.Enabled {
		if c.TLS.CAFile != "" {
			opts = append(opts, nats.RootCAs(c.TLS.CAFile))
		}
		if c.TLS.CertFile != "" && c.TLS.KeyFile != "" {
			opts = append(opts, nats.ClientCert(c.TLS.CertFile, c.TLS.KeyFile))
		}
	}

	return opts
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorNATS, func() pipeline.Connector { return &PeerNATS{} })
}
