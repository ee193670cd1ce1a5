package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ErrNotConfigured is returned by commands run without an App.
var ErrNotConfigured = errors.New("supabase client not configured: set SUPABASE_URL and SUPABASE_KEY")

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "Print the service URLs derived from SUPABASE_URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil {
			return ErrNotConfigured
		}
		e := a.Client.Endpoints()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "auth:     %s\n", e.AuthURL)
		fmt.Fprintf(out, "rest:     %s\n", e.RestURL)
		fmt.Fprintf(out, "realtime: %s\n", e.RealtimeURL)
		fmt.Fprintf(out, "storage:  %s\n", e.StorageURL)
		fmt.Fprintf(out, "schema:   %s\n", a.Client.Schema())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(endpointsCmd)
}
