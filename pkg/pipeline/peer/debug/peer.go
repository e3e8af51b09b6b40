package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/edgeflare/silver/pkg/pipeline"
	"go.uber.org/zap"
)

// Config of the debug peer. Format is "log" (default), which writes a
// structured log line per record, or "json", which writes each value as a
// line to stdout.
type Config struct {
	Format string `json:"format"`
}

// PeerDebug is a debug peer that logs the records instead of publishing them
type PeerDebug struct {
	logger *zap.Logger
	format string
	out    io.Writer
}

func (p *PeerDebug) Connect(config json.RawMessage, args ...any) error {
	var cfg Config
	if len(config) > 0 && string(config) != "null" {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("unmarshal debug config: %w", err)
		}
	}

	switch cfg.Format {
	case "", "log":
		p.format = "log"
	case "json":
		p.format = "json"
	default:
		return fmt.Errorf("unknown debug format %q", cfg.Format)
	}

	p.logger = zap.NewNop()
	for _, a := range args {
		switch v := a.(type) {
		case *zap.Logger:
			if v != nil {
				p.logger = v
			}
		case io.Writer:
			p.out = v
		}
	}
	if p.out == nil {
		p.out = os.Stdout
	}
	return nil
}

func (p *PeerDebug) Pub(_ context.Context, msg pipeline.Message) error {
	if p.logger == nil {
		return pipeline.ErrNotConnected
	}

	if p.format == "json" {
		_, err := fmt.Fprintf(p.out, "%s\n", msg.Value)
		return err
	}

	p.logger.Info(pipeline.ConnectorDebug,
		zap.String("topic", msg.Topic),
		zap.ByteString("key", msg.Key),
		zap.Int("bytes", len(msg.Value)),
		zap.Time("timestamp", msg.Timestamp))
	return nil
}

func (p *PeerDebug) Disconnect() error {
	return nil
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorDebug, func() pipeline.Connector { return &PeerDebug{} })
}
