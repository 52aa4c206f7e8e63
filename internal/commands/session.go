package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gaborage/finbricks/app"
	"github.com/gaborage/finbricks/tokenstore"
)

func newLoginCommand(root *rootOptions) *cobra.Command {
	var creds tokenstore.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the token pair returned by the sign-in endpoint",
		Long: `Stores an access token and optional refresh token in the configured
token store. Without --access-token the pair is read from stdin as JSON:
{"accessToken": "...", "refreshToken": "..."}`,
		Example: `  finctl login --access-token "$ACCESS" --refresh-token "$REFRESH"
  curl -s -d @signin.json https://api.example.com/auth/login | finctl login`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if creds.AccessToken == "" {
				if err := json.NewDecoder(cmd.InOrStdin()).Decode(&creds); err != nil {
					return fmt.Errorf("failed to read credentials from stdin: %w", err)
				}
			}
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Session().Login(ctx, creds); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed in")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&creds.AccessToken, "access-token", "", "Access token")
	cmd.Flags().StringVar(&creds.RefreshToken, "refresh-token", "", "Refresh token")
	return cmd
}

func newLogoutCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Session().LogoutContext(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

func newStatusCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether credentials are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				ok, err := a.Session().IsAuthenticated(ctx)
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Signed in")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				}
				return nil
			})
		},
	}
}
