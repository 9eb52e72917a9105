package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/facility-registry/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "facility-registry",
	Short: "Harvest facility layers and build a unified facility registry",
	Long: `Downloads facility layers from an ArcGIS MapServer into JSONL/CSV and
merges prefix-configured JSONL sources into one registry keyed by PREFIX.ID.

Settings come from ./config.yaml and FACILITY_* environment variables;
command flags override both.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console, json)")
}

// bootstrap loads the configuration, applies the logging flags and installs
// the global logger.
func bootstrap(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load()
	if err != nil {
		return nil, eris.Wrap(err, "load config")
	}
	if err := applyLogFlags(cmd, &c.Log); err != nil {
		return nil, err
	}
	if err := config.InitLogger(c.Log); err != nil {
		return nil, eris.Wrap(err, "init logger")
	}
	zap.L().Debug("configuration loaded",
		zap.String("command", cmd.CommandPath()),
		zap.String("log_level", c.Log.Level),
	)
	return c, nil
}

// applyLogFlags copies explicitly set logging flags over the loaded config.
func applyLogFlags(cmd *cobra.Command, lc *config.LogConfig) error {
	f := cmd.Flags()
	var err error
	if f.Changed("log-level") {
		lc.Level, err = f.GetString("log-level")
	}
	if err == nil && f.Changed("log-format") {
		lc.Format, err = f.GetString("log-format")
	}
	if err != nil {
		return eris.Wrap(err, "read log flags")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
