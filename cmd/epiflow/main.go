package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/epiflow/internal/app"
	"github.com/tigerroll/epiflow/internal/job"
	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

// embeddedConfig is the default application.yaml compiled into the binary.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	envFilePath string
	configPath  string
	metricNames []string
)

var rootCmd = &cobra.Command{
	Use:   "epiflow",
	Short: "Epidemic data ETL and forecasting pipeline",
	Long: `epiflow downloads case and vaccination time series, reconciles country
names across sources, writes flat CSV interchange artifacts and fits
per-metric forecasts.`,
	SilenceUsage: true,
	PersistentPostRun: func(*cobra.Command, []string) {
		logger.Sync()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMode(cmd.Context(), job.ModeRun)
	},
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast from an existing covid.csv artifact",
	Long: `Reads covid.csv from the output storage connection and refreshes the
forecast artifacts without downloading any source.

Example:
  epiflow forecast --metric Confirmed --metric Deaths`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMode(cmd.Context(), job.ModeForecast)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig(envFilePath, embeddedConfig, configPath)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "epiflow %s\n", version)
	},
}

func runMode(ctx context.Context, mode job.Mode) error {
	return app.RunApplication(ctx, app.Options{
		EnvFilePath:    envFilePath,
		ConfigPath:     configPath,
		EmbeddedConfig: embeddedConfig,
		Mode:           mode,
		Metrics:        metricNames,
	})
}

func defaultEnvFile() string {
	if p := os.Getenv("ENV_FILE_PATH"); p != "" {
		return p
	}
	return ".env"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFilePath, "env-file", defaultEnvFile(), "path of the .env file to load")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "external YAML file overriding the embedded configuration")
	forecastCmd.Flags().StringSliceVar(&metricNames, "metric", nil, "metric to forecast (Confirmed, Deaths, Recovered, Active); repeatable")

	rootCmd.AddCommand(runCmd, forecastCmd, configCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}
