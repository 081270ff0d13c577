package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrdesk/hr-assistant/internal/middleware"
)

var (
	tokenAdmin bool
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <operator-id>",
	Short: "Issue a management API token",
	Long:  `Sign a bearer token for the management API with JWT_SECRET. --admin grants write access.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var scopes []string
		if tokenAdmin {
			scopes = append(scopes, middleware.ScopeAdmin)
		}
		token, err := middleware.IssueToken(cfg.JWTSecret, args[0], scopes, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", false, "grant the "+middleware.ScopeAdmin+" scope")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
