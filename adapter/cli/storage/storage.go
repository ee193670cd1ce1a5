package storage

import (
	"fmt"

	"github.com/felixgeelhaar/supabase-go/adapter/cli"
	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect object storage",
}

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "List bucket names",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := cli.GetApp()
		if a == nil {
			return cli.ErrNotConfigured
		}
		names, err := a.Client.Storage().ListBucketNames()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "No buckets.")
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	},
}

func init() {
	Cmd.AddCommand(bucketsCmd)
}
