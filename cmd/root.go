package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zone-router/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "zone-router",
	Short: "Sensor-zone analytics and health-aware route scoring",
	Long: "Partitions the monitored area into Voronoi zones around sensors, aggregates air quality, " +
		"weather, accident and traffic data per zone, and ranks alternative routes against them. " +
		"Also renders IDW heatmaps and k-means sensor clusters.",
	SilenceUsage:      true,
	PersistentPreRunE: setupRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "override log.level (debug, info, warn, error)")
}

// setupRuntime loads the configuration named by --config, applies flag
// overrides and installs the global logger.
func setupRuntime(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.LoadFrom(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		c.Log.Level = level
	}
	cfg = c

	if err := config.InitLogger(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	zap.L().Debug("configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("config_file", path),
		zap.String("sensor_driver", cfg.Sources.Sensors.Driver),
		zap.String("cache_backend", cfg.Cache.Backend),
	)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
