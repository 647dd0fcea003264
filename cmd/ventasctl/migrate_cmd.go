package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ventas.io/internal/config"
	"ventas.io/internal/migrate"
	"ventas.io/internal/store/pg"
	"ventas.io/migrations"
)

func newMigrateCmd() *cobra.Command {
	var (
		dsn     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}
	cmd.PersistentFlags().StringVar(&dsn, "database-url", envOr("DATABASE_URL", ""), "PostgreSQL URL")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")

	// withManager opens the database, runs fn and closes the pool.
	withManager := func(cmd *cobra.Command, fn func(context.Context, *migrate.Manager) error) error {
		url := config.NormalizeDatabaseURL(dsn)
		if url == "" {
			return errors.New("missing database url: provide --database-url or DATABASE_URL")
		}
		st, err := pg.Open(url)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return fn(ctx, migrate.NewManager(st.DB(), migrations.FS))
	}

	printNames := func(cmd *cobra.Command, verb string, names []string) {
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to do")
			return
		}
		for _, n := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, n)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, func(ctx context.Context, m *migrate.Manager) error {
				ran, err := m.Up(ctx)
				printNames(cmd, "applied", ran)
				return err
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, func(ctx context.Context, m *migrate.Manager) error {
				name, err := m.Down(ctx)
				if err != nil {
					return err
				}
				printNames(cmd, "rolled back", []string{name})
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Apply pending seed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, func(ctx context.Context, m *migrate.Manager) error {
				ran, err := m.Seed(ctx)
				printNames(cmd, "seeded", ran)
				return err
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, func(ctx context.Context, m *migrate.Manager) error {
				st, err := m.Status(ctx)
				if err != nil {
					return err
				}
				for _, s := range st {
					mark := "pending"
					if s.Applied {
						mark = "applied"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", mark, s.Name)
				}
				return nil
			})
		},
	})
	return cmd
}
