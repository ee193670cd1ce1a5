package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/supabase-go/pkg/observability"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	logger  *slog.Logger
)

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
}

type commandContextKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "supabase",
	Short: "supabase - one client for a Supabase project",
	Long: `supabase talks to the auth, REST and storage services of a Supabase
project using one project URL and API key.

	The signed-in session is carried to every service call.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		info := commandContext{
			correlationID: uuid.New(),
			startedAt:     time.Now(),
		}
		ctx := context.WithValue(cmd.Context(), commandContextKey{}, info)
		ctx = observability.WithCorrelationID(ctx, info.correlationID.String())
		cmd.SetContext(ctx)
		logger.DebugContext(ctx, "command start", "command", cmd.CommandPath())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
		if !ok {
			return
		}
		logger.DebugContext(cmd.Context(), "command end",
			"command", cmd.CommandPath(),
			"duration_ms", time.Since(info.startedAt).Milliseconds(),
		)
	},
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Verbose reports whether --verbose was given.
func Verbose() bool { return verbose }

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

// Root returns the root command.
func Root() *cobra.Command { return rootCmd }
