package main

import (
	"fmt"
	"os"

	"coteri/config"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "passctl",
		Short:   "Operator tooling for membership passes and billing webhooks",
		Version: Version,
	}

	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(replayCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signingSecret prefers the flag value and falls back to QR_SIGNING_SECRET.
func signingSecret(cmd *cobra.Command) string {
	if secret, _ := cmd.Flags().GetString("secret"); secret != "" {
		return secret
	}
	return config.LoadConfig().QRSigningSecret
}
