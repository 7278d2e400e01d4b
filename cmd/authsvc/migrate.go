package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	bootstrap "github.com/goliatone/go-auth-bootstrap"
	"github.com/goliatone/go-auth-bootstrap/identity"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply identity store migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIdentityDB(cmd.Context(), func(ctx context.Context, db *bun.DB) error {
			applied, err := identity.Migrate(ctx, db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				log.Info().Msg("identity store is up to date")
				return nil
			}
			log.Info().Strs("migrations", applied).Msg("applied identity migrations")
			return nil
		})
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert the last applied migration group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIdentityDB(cmd.Context(), func(ctx context.Context, db *bun.DB) error {
			reverted, err := identity.Rollback(ctx, db)
			if err != nil {
				return err
			}
			log.Info().Strs("migrations", reverted).Msg("rolled back identity migrations")
			return nil
		})
	},
}

func withIdentityDB(ctx context.Context, fn func(context.Context, *bun.DB) error) error {
	cfg, err := loadedConfig()
	if err != nil {
		return err
	}

	dsn := cfg.GetConnectionString(bootstrap.IdentityConnectionKey)
	if dsn == "" {
		return bootstrap.ErrMissingConnectionString
	}

	db, err := identity.Open(dsn)
	if err != nil {
		return fmt.Errorf("opening identity store: %w", err)
	}
	defer db.Close()

	return fn(ctx, db)
}

func init() {
	migrateCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(migrateCmd)
}
