package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/scanfolders/internal/drive"
	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

func newAuthCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Google account uploads go to",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthWhoamiCmd(opts))

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Google Drive",
		Long: `Signs in with an OAuth authorization code.

Set GOOGLE_OAUTH_CLIENT_JSON to the client_secret JSON of a Google Cloud OAuth client.
Open the printed URL, grant access, and paste the code back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := tokenFile()
			if err != nil {
				return err
			}

			if code == "" {
				url, err := tokens.AuthCodeURL(uuid.NewString())
				if err != nil {
					return fmt.Errorf("%w\n\nSet GOOGLE_OAUTH_CLIENT_JSON to your OAuth client file", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in a browser and grant access:\n\n  %s\n\nPaste the authorization code: ", url)
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read authorization code: %w", err)
				}
				code = strings.TrimSpace(line)
			}
			if code == "" {
				return errors.New("no authorization code given")
			}

			token, err := tokens.Exchange(cmd.Context(), code)
			if err != nil {
				return err
			}

			id := providers.Identity{TokenSource: oauth2.StaticTokenSource(token)}
			email, name, err := drive.New().AccountEmail(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := tokens.SignIn(email, name, token); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code, instead of prompting for it")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := tokenFile()
			if err != nil {
				return err
			}
			if err := tokens.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newAuthWhoamiCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account uploads go to",
		RunE: func(cmd *cobra.Command, args []string) error {
			authProvider, _, err := opts.backendServices()
			if err != nil {
				return err
			}
			id, err := authProvider.CurrentIdentity(cmd.Context())
			if err != nil {
				return err
			}
			if id.DisplayName != "" && id.DisplayName != id.Email {
				fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", id.DisplayName, id.Email)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.Email)
			return nil
		},
	}
}
