package main

import (
	"fmt"

	"coteri/internal/passtoken"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func signCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign [membership-id] [venue-id]",
		Short: "Issue a signed pass payload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if _, err := uuid.Parse(id); err != nil {
					return fmt.Errorf("invalid id %q: %w", id, err)
				}
			}

			signer := passtoken.NewSigner(signingSecret(cmd))
			token, err := signer.Sign(args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", signer.ExpiresAt().UTC().Format("2006-01-02T15:04:05Z"))
			return nil
		},
	}

	cmd.Flags().StringP("secret", "s", "", "Signing secret (default $QR_SIGNING_SECRET)")

	return cmd
}
