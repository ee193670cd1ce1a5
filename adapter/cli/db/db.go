package db

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/supabase-go/adapter/cli"
	"github.com/felixgeelhaar/supabase-go/pkg/observability"
	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "db",
	Short: "Query tables through the REST API",
}

var (
	columns string
	limit   int
)

var selectCmd = &cobra.Command{
	Use:   "select <table>",
	Short: "Select rows from a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := cli.GetApp()
		if a == nil {
			return cli.ErrNotConfigured
		}

		log := observability.LogOperation(a.Logger, "db.select", "table", args[0])
		log.DebugContext(cmd.Context(), "querying", "columns", columns, "limit", limit)

		q := a.Client.Database().From(args[0]).Select(columns, "", false)
		if limit > 0 {
			q = q.Limit(limit, "")
		}
		body, _, err := q.Execute()
		if err != nil {
			log.WarnContext(cmd.Context(), "query failed", "error", err)
			return fmt.Errorf("select %s: %w", args[0], err)
		}

		var out bytes.Buffer
		if err := json.Indent(&out, body, "", "  "); err != nil {
			out.Reset()
			out.Write(body)
		}
		out.WriteByte('\n')
		_, err = cmd.OutOrStdout().Write(out.Bytes())
		return err
	},
}

func init() {
	selectCmd.Flags().StringVar(&columns, "columns", "*", "columns to return")
	selectCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of rows (0 for no limit)")

	Cmd.AddCommand(selectCmd)
}
