package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	applycmd "github.com/sqlport/sqlport/cmd/apply"
	contextcmd "github.com/sqlport/sqlport/cmd/context"
	loadcmd "github.com/sqlport/sqlport/cmd/load"
	portcmd "github.com/sqlport/sqlport/cmd/port"
	statuscmd "github.com/sqlport/sqlport/cmd/status"
	verifycmd "github.com/sqlport/sqlport/cmd/verify"
	"github.com/sqlport/sqlport/internal/logger"
	"github.com/sqlport/sqlport/internal/version"
)

var Debug bool

// Build-time variables set via ldflags
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var RootCmd = &cobra.Command{
	Use:   "sqlport",
	Short: "SQL dialect porting and verification tool",
	Long: fmt.Sprintf(`sqlport ports SQL scripts from a source dialect to PostgreSQL and verifies
them against a live target database before anything is committed.

Version: %s@%s %s %s

Commands:
  load     Register source SQL files in the metadata store
  port     Run the transpile/review/verify pipeline over selected assets
  verify   Re-verify rendered outputs against the target database
  apply    Apply verified outputs with commit discipline
  status   Show migration progress and recent run events
  context  Show the schema context document for a SQL script

Use "sqlport [command] --help" for more information about a command.`,
		version.App(), GitCommit, version.Platform(), BuildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger()
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug logging")
	RootCmd.AddCommand(loadcmd.LoadCmd)
	RootCmd.AddCommand(portcmd.PortCmd)
	RootCmd.AddCommand(verifycmd.VerifyCmd)
	RootCmd.AddCommand(applycmd.ApplyCmd)
	RootCmd.AddCommand(statuscmd.StatusCmd)
	RootCmd.AddCommand(contextcmd.ContextCmd)
	RootCmd.AddCommand(VersionCmd)
}

func setupLogger() {
	level := slog.LevelInfo
	if Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	logger.SetGlobal(slog.New(handler), Debug)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
