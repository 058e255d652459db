package main

import (
	"fmt"

	"coteri/internal/passtoken"

	"github.com/spf13/cobra"
)

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [token]",
		Short: "Check a signed pass payload and print why it fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := passtoken.NewVerifier(signingSecret(cmd)).Verify(args[0])
			return printVerification(cmd, result)
		},
	}

	cmd.Flags().StringP("secret", "s", "", "Signing secret (default $QR_SIGNING_SECRET)")

	return cmd
}

func printVerification(cmd *cobra.Command, result passtoken.Result) error {
	out := cmd.OutOrStdout()
	if !result.Valid() {
		fmt.Fprintf(out, "invalid: %s\n", result.Reason)
		return fmt.Errorf("token rejected")
	}
	fmt.Fprintln(out, "valid")
	fmt.Fprintf(out, "  membership: %s\n", result.Claims.MembershipID)
	fmt.Fprintf(out, "  venue:      %s\n", result.Claims.VenueID)
	return nil
}
