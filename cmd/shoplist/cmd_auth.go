package main

import (
	"errors"
	"fmt"
	"strings"

	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/shared-lists/internal/auth"
	"github.com/nhle/shared-lists/internal/credential"
	"github.com/nhle/shared-lists/internal/theme"
)

func newLoginCmd(st *cliState) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the user pool and remember the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if st.cfg.Identity.ClientID == "" {
				return errors.New("identity.client_id is not configured")
			}

			if username == "" || password == "" {
				if !isTerminal(cmd.InOrStdin()) {
					return errors.New("--username and --password are required without a terminal")
				}
				if err := promptCredentials(&username, &password); err != nil {
					return err
				}
			}

			client := cip.New(cip.Options{Region: st.cfg.Identity.Region})
			session, err := auth.NewCognitoSignIn(client, st.cfg.Identity.ClientID).SignIn(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if err := credential.SaveSession(session.Username, session.IDToken); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), theme.HeaderStyle.Render("Signed in as "+session.Username))
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "user name or email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}

func promptCredentials(username, password *string) error {
	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(username).
				Validate(required("Username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(required("Password")),
		),
	).Run()
}

func newLogoutCmd(_ *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := credential.ClearSession(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
