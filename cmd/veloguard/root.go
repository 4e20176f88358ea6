package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rvald/veloguard/internal/config"
)

var (
	cfgStateDir string
	cfgFile     string
)

var rootCmd = &cobra.Command{
	Use:           "veloguard",
	Short:         "Forwarding-secret guard for backend game servers",
	Long:          `Verifies the secret a proxy appends to forwarded handshakes and denies everything else.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgStateDir, "state-dir", config.DefaultStateDir(), "Directory for persistent state (config, logs)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default <state-dir>/"+config.FileName+")")
}

// configPath returns the --config flag or the config inside the state dir.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(cfgStateDir, config.FileName)
}

// loadConfig loads and validates the active configuration.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath())
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
