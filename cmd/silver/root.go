package silver

import (
	"fmt"
	"os"
	"strings"

	"github.com/edgeflare/silver/pkg/config"
	"github.com/edgeflare/silver/pkg/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var cfgFile string
var logLevel string
var cfg *config.Config
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "silver",
	Short: "silver turns Debezium CDC topics into flat silver records",
	Long: `silver consumes Debezium change events from bronze Kafka topics, keeps the
"after" row of every event and publishes it as a flat record with the target
Iceberg table attached, ready for an Iceberg sink.`,
	Run: func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Println(config.Version)
			return
		}

		// If no subcommand is provided, print help
		cmd.Help()
	},
}

func Main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", util.GetEnvOrDefault("SILVER_CONFIG", ""), "config file (default is $HOME/.config/silver.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "L", util.FirstEnv("info", "SILVER_LOG_LEVEL", "LOG_LEVEL"), "log at this level (debug, info, warn, error, none)")
	rootCmd.Flags().BoolP("version", "v", false, "Print the version number")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
}

func initConfig() {
	var err error
	logger, err = newLogger(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error creating logger:", err)
		os.Exit(1)
	}

	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}
}

// newLogger returns a production JSON logger at level. "none" discards logs.
func newLogger(level string) (*zap.Logger, error) {
	if strings.EqualFold(level, "none") {
		return zap.NewNop(), nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
