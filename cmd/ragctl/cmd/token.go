package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mehul-raul/contract-analysis-agent/internal/auth"
	"github.com/mehul-raul/contract-analysis-agent/internal/config"
)

func newTokenCmd(_ *globalOptions) *cobra.Command {
	var (
		userID int64
		expiry time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the search API",
		Long: `Sign a JWT for the given user with JWT_SECRET, for calling ragd by hand.

Example:
  curl -H "Authorization: Bearer $(ragctl token --user 1)" ...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user must be a positive id")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
			jwtCfg.Issuer = cfg.JWTIssuer
			jwtCfg.Expiry = cfg.JWTExpiry
			if expiry > 0 {
				jwtCfg.Expiry = expiry
			}

			token, err := auth.NewJWTManager(jwtCfg).GenerateToken(userID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "User id carried in the token")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "Token lifetime (0 uses JWT_EXPIRY)")
	return cmd
}
