// Package cmd - tickersync CLI commands
package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wonny/tickersync/internal/pkg/config"
	"github.com/wonny/tickersync/internal/pkg/logger"
)

const (
	serviceName    = "tickersync"
	serviceVersion = "1.0.0"
)

var (
	// 공통 플래그
	cfgFile string
	verbose bool

	// loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd 루트 커맨드
var rootCmd = &cobra.Command{
	Use:   "tickersync",
	Short: "Ticker reconciliation between exchange listings, the stocks table and a market-data provider",
	Long: `tickersync - ticker reconciliation CLI

Usage:
    go run ./cmd/tickersync [command]

Commands:
    sync          - Reconcile listings against the stocks table and apply the plan
    schema init   - Create the stocks and sync_runs tables
    runs          - Show recent sync runs
    serve         - Status HTTP API (Port 8099)
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute 루트 커맨드 실행
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(serveCmd)
}

// initConfig reads in config file and ENV variables, then sets up logging
func initConfig() error {
	loaded, err := config.LoadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		loaded.Logging.Level = "debug"
	}
	cfg = loaded

	if err := logger.Init(loggerConfig(cfg)); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Debug().Str("config", cfgFile).Msg("Configuration loaded")
	return nil
}

func loggerConfig(c *config.Config) logger.Config {
	return logger.Config{
		Level:          c.Logging.Level,
		Format:         c.Logging.Format,
		FileEnabled:    c.Logging.FileEnabled,
		FilePath:       c.Logging.FilePath,
		RotationSize:   c.Logging.RotationSize,
		RetentionDays:  c.Logging.RetentionDays,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	}
}
