package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/pkg/config"
	"github.com/noah-isme/sma-substitution-api/pkg/logger"
)

type sessionKey struct{}

type session struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "api-gateway",
		Short:         "Teacher substitution service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), sessionKey{}, &session{cfg: cfg, logger: logr}))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if sess := sessionFrom(cmd); sess != nil {
				_ = sess.logger.Sync()
			}
		},
	}
	root.SetContext(context.Background())

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newImportTimetableCmd(),
		newIssueTokenCmd(),
	)
	return root
}

func sessionFrom(cmd *cobra.Command) *session {
	sess, _ := cmd.Context().Value(sessionKey{}).(*session)
	return sess
}
