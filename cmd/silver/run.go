package silver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/edgeflare/silver/pkg/config"
	"github.com/edgeflare/silver/pkg/metrics"
	"github.com/edgeflare/silver/pkg/pipeline"
	"github.com/edgeflare/silver/pkg/pipeline/peer/kafka"
	"github.com/edgeflare/silver/pkg/serde"
	"github.com/edgeflare/silver/pkg/sources/esw"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	// Register built-in sink connectors
	_ "github.com/edgeflare/silver/pkg/pipeline/peer/debug"
	_ "github.com/edgeflare/silver/pkg/pipeline/peer/nats"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"r"},
	Short:   "Run the bronze to silver pipeline",
	Long: `Run the bronze to silver pipeline. Until SILVER_APPROVED is true the plan is
printed and nothing is consumed.`,
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{Addr: cfg.Metrics.Addr, Logger: logger})
	}

	logger.Info("starting silver",
		zap.String("version", config.Version),
		zap.String("applicationID", cfg.ApplicationID),
		zap.Strings("topics", cfg.Bronze.Topics),
		zap.String("valueFormat", cfg.ValueFormat),
		zap.String("sink", cfg.Sink.Connector),
		zap.Bool("approved", cfg.Silver.Approved))

	err := newManager().Run(ctx, wiring(cfg, logger))
	if err != nil {
		logger.Error("pipeline error", zap.Error(err))
	} else {
		logger.Info("Received termination signal, shutting down gracefully...")
	}
	stop()

	// Wait for goroutines to complete
	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()
	select {
	case <-doneChan:
		logger.Info("Shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("Shutdown timed out", zap.Duration("timeout", shutdownTimeout))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newManager() *pipeline.Manager {
	return pipeline.NewManager(cfg, logger, esw.Task())
}

// wiring builds the registries, serdes, sink and consumer group of an
// approved run.
func wiring(cfg *config.Config, logger *zap.Logger) pipeline.Wiring {
	return func(ctx context.Context) (*pipeline.Resources, error) {
		des, ser, err := newSerdes(cfg, logger)
		if err != nil {
			return nil, err
		}

		sinkConfig, err := sinkConfig(cfg)
		if err != nil {
			return nil, err
		}
		peer := &pipeline.Peer{
			Name:          "silver-" + cfg.Sink.Connector,
			ConnectorName: cfg.Sink.Connector,
			Config:        sinkConfig,
			Args:          []any{logger.Named("sink")},
		}
		sink, err := peer.Connect(ctx, logger)
		if err != nil {
			return nil, err
		}

		runtime, err := kafka.NewRuntime(kafka.FromConfig(cfg.Kafka, cfg.ApplicationID), logger.Named("consumer"))
		if err != nil {
			sink.Disconnect()
			return nil, err
		}

		return &pipeline.Resources{
			Runtime:      runtime,
			Deserializer: des,
			Serializer:   ser,
			Sink:         sink,
			SinkName:     cfg.Sink.Connector,
		}, nil
	}
}

func newSerdes(cfg *config.Config, logger *zap.Logger) (serde.Deserializer, serde.Serializer, error) {
	if !strings.EqualFold(cfg.ValueFormat, serde.FormatAvro) {
		return serde.New(cfg.ValueFormat, nil, nil)
	}

	stdLog := zap.NewStdLog(logger.Named("registry"))
	registry := func(group string) (serde.Registry, error) {
		return serde.NewRegistry(serde.RegistryConfig{
			URL:     cfg.Registry.URL,
			Flavor:  cfg.Registry.Flavor,
			GroupID: group,
			Timeout: cfg.Registry.Timeout,
			Logger:  stdLog,
		})
	}

	bronze, err := registry(cfg.Registry.BronzeGroupID)
	if err != nil {
		return nil, nil, err
	}
	silver, err := registry(cfg.Registry.SilverGroupID)
	if err != nil {
		return nil, nil, err
	}
	return serde.New(cfg.ValueFormat, bronze, silver)
}

// sinkConfig returns sink.config, or for a Kafka sink without one, the
// producer settings derived from the kafka section.
func sinkConfig(cfg *config.Config) (map[string]any, error) {
	if len(cfg.Sink.Config) > 0 || cfg.Sink.Connector != pipeline.ConnectorKafka {
		return cfg.Sink.Config, nil
	}

	data, err := json.Marshal(kafka.FromConfig(cfg.Kafka, cfg.ApplicationID+"-producer"))
	if err != nil {
		return nil, fmt.Errorf("marshal kafka sink config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal kafka sink config: %w", err)
	}
	return m, nil
}
