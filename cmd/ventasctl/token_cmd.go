package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ventas.io/internal/identity"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Development session tokens",
	}

	var (
		secret   string
		subject  string
		audience string
		ttl      time.Duration
	)
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint an HS256 session token for the jwt identity mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sub, err := uuid.Parse(subject)
			if err != nil {
				return fmt.Errorf("invalid --subject: %w", err)
			}
			token, err := identity.MintHS256(secret, sub, audience, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	mint.Flags().StringVar(&secret, "secret", envOr("JWT_SECRET", ""), "HS256 signing secret")
	mint.Flags().StringVar(&subject, "subject", envOr("VENTAS_DEV_SUBJECT", ""), "Subject (usuarios.auth_uid)")
	mint.Flags().StringVar(&audience, "audience", envOr("VENTAS_TOKEN_AUDIENCE", ""), "Optional audience claim")
	mint.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	cmd.AddCommand(mint)
	return cmd
}
