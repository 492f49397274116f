package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AI2HU/brandlens/internal/auth"
)

var (
	tokenEmail  string
	tokenExpiry time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token [user-id]",
	Short: "Issue an API bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Server.JWTSecret == "" {
			return fmt.Errorf("no JWT secret configured; set server.jwt_secret or BRANDLENS_JWT_SECRET")
		}
		token, err := auth.NewManager(cfg.Server.JWTSecret, cfg.Server.JWTIssuer, tokenExpiry).Issue(args[0], tokenEmail)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email claim")
	tokenCmd.Flags().DurationVar(&tokenExpiry, "expiry", 24*time.Hour, "Token lifetime")
}
