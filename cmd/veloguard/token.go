package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/rvald/veloguard/internal/token"
)

var tokenSave bool

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage forwarding secrets",
}

var tokenGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Print a fresh random token",
	RunE: func(cmd *cobra.Command, args []string) error {
		tok := token.Generate()
		if tokenSave {
			path, err := appendToTokenFile(tok)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "saved to %s\n", path)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

var tokenCheckCmd = &cobra.Command{
	Use:   "check [token]",
	Short: "Exit 0 if the token is in the configured set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		if !store.Contains(args[0]) {
			return fmt.Errorf("token not accepted (%d configured)", store.Len())
		}
		fmt.Fprintln(cmd.OutOrStdout(), "token accepted")
		return nil
	},
}

func init() {
	tokenGenerateCmd.Flags().BoolVar(&tokenSave, "save", false, "Append the token to the configured token_file")
	tokenCmd.AddCommand(tokenGenerateCmd, tokenCheckCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadStore builds a token store from the active configuration.
func loadStore() (*token.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	tokens, err := cfg.AllTokens()
	if err != nil {
		return nil, err
	}
	return token.NewStore(tokens), nil
}

func appendToTokenFile(tok string) (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	path := cfg.TokenFilePath()
	if path == "" {
		return "", fmt.Errorf("--save requires token_file in %s", configPath())
	}

	existing, err := token.LoadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if err := token.SaveFile(path, append(existing, tok)); err != nil {
		return "", err
	}
	return path, nil
}
