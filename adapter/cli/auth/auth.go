package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/felixgeelhaar/supabase-go/adapter/cli"
	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in, inspect and end the stored session",
}

var (
	email    string
	password string
)

var signInCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := cli.GetApp()
		if a == nil {
			return cli.ErrNotConfigured
		}
		if email == "" {
			return errors.New("missing --email")
		}
		pw := password
		if pw == "" {
			pw = os.Getenv("SUPABASE_PASSWORD")
		}
		if pw == "" {
			return errors.New("missing --password (or SUPABASE_PASSWORD)")
		}

		s, err := a.Client.Auth().SignInWithPassword(cmd.Context(), email, pw)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", s.UserEmail)
		return nil
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := cli.GetApp()
		if a == nil {
			return cli.ErrNotConfigured
		}
		out := cmd.OutOrStdout()
		s := a.Client.Auth().Session()
		if s == nil {
			fmt.Fprintln(out, "Not signed in; requests use the API key.")
			return nil
		}

		fmt.Fprintf(out, "User:    %s\n", s.UserEmail)
		if s.ExpiresAt > 0 {
			exp := s.ExpiryTime()
			fmt.Fprintf(out, "Expires: %s (%s)\n", exp.Format(time.RFC3339), time.Until(exp).Round(time.Second))
		}
		if cli.Verbose() {
			fmt.Fprintf(out, "Token:   %s\n", s.AccessToken)
		}
		return nil
	},
}

var signOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "End the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := cli.GetApp()
		if a == nil {
			return cli.ErrNotConfigured
		}
		if a.Client.Auth().Session() == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
			return nil
		}
		if err := a.Client.Auth().SignOut(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

func init() {
	signInCmd.Flags().StringVar(&email, "email", "", "account email")
	signInCmd.Flags().StringVar(&password, "password", "", "account password")

	Cmd.AddCommand(signInCmd)
	Cmd.AddCommand(sessionCmd)
	Cmd.AddCommand(signOutCmd)
}
