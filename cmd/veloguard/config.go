package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rvald/veloguard/internal/config"
)

const redacted = "<redacted>"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the active configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadOrDefault(configPath())
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(redact(cfg))
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", configPath(), out)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and token file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tokens, err := cfg.AllTokens()
		if err != nil {
			return err
		}
		if len(tokens) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: no tokens configured, every forwarded connection will be denied")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %d token(s)\n", len(tokens))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func redact(cfg config.Config) config.Config {
	tokens := make([]string, len(cfg.Tokens))
	for i := range tokens {
		tokens[i] = redacted
	}
	cfg.Tokens = tokens
	if cfg.Gateway.AuthToken != "" {
		cfg.Gateway.AuthToken = redacted
	}
	return cfg
}
