package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/pkg/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := sessionFrom(cmd)
			db, err := database.NewPostgres(cmd.Context(), sess.cfg.Database)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer db.Close()

			result, err := database.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			if !result.Changed() {
				sess.logger.Info("schema already up to date", zap.Uint("version", result.To))
				return nil
			}
			sess.logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("to", result.To))
			return nil
		},
	}
}
