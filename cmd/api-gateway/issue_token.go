package main

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/internal/service"
)

func newIssueTokenCmd() *cobra.Command {
	var req service.IssueTokenRequest
	var role string

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint an access token for an operator or integration",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := sessionFrom(cmd)
			auth := service.NewAuthService(validator.New(), sess.logger, service.AuthConfig{
				AccessTokenSecret: sess.cfg.JWT.Secret,
				AccessTokenExpiry: sess.cfg.JWT.TokenTTL,
				Issuer:            sess.cfg.JWT.Issuer,
			})

			req.Role = models.UserRole(role)
			token, expiresAt, err := auth.IssueToken(req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.UserID, "user", "", "Subject user ID (required)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "Role: SUPERADMIN, ADMIN, SECRETARY or TEACHER")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email claim")
	cmd.Flags().StringVar(&req.FullName, "name", "", "Full name claim")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
