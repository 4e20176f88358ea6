package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rvald/veloguard/internal/handshake"
)

var verifyRaw string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Decode a forwarded handshake against the configured tokens",
	Long: `Decode a raw forwarded hostname the way the gateway does and print the result.

The handshake is read from --raw or, when absent, from stdin. Field
delimiters may be written as \0 or \x00.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := verifyRaw
		if raw == "" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			raw = strings.TrimRight(string(data), "\r\n")
		}

		store, err := loadStore()
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), handshake.DecodeAndVerify(unescapeNUL(raw), store))
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyRaw, "raw", "", `Raw handshake with \0 as the delimiter`)
	rootCmd.AddCommand(verifyCmd)
}

// unescapeNUL turns the textual delimiter escapes into real NUL bytes.
func unescapeNUL(s string) string {
	return strings.NewReplacer(`\x00`, handshake.Delimiter, `\0`, handshake.Delimiter).Replace(s)
}

func printResult(w io.Writer, res handshake.Result) error {
	switch r := res.(type) {
	case handshake.Success:
		fmt.Fprintf(w, "result:      success\n")
		fmt.Fprintf(w, "server host: %s\n", r.ServerHostname)
		fmt.Fprintf(w, "client addr: %s\n", r.SocketAddressHostname)
		fmt.Fprintf(w, "unique id:   %s\n", r.UniqueID)
		fmt.Fprintf(w, "properties:  %s\n", r.PropertiesJSON)
		return nil
	case handshake.Fail:
		fmt.Fprintf(w, "result:      %s\n", r.Reason)
		fmt.Fprintf(w, "connection:  %s\n", r.DescribeConnection())
		return fmt.Errorf("handshake rejected: %s", r.Reason)
	default:
		return fmt.Errorf("unexpected result %T", res)
	}
}
