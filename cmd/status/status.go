// Package status implements the command that reports migration progress from
// the metadata store: per-status asset counts plus the most recent run events.
package status

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sqlport/sqlport/internal/color"
	"github.com/sqlport/sqlport/internal/config"
	"github.com/sqlport/sqlport/internal/logger"
	"github.com/sqlport/sqlport/internal/metastore"
	"github.com/sqlport/sqlport/internal/workflow"
)

var (
	statusConfig  string
	statusLogs    int
	statusNoColor bool
)

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration progress and recent run events",
	Long:  "Print per-status counts for every ported asset, followed by the most recent execution log entries.",
	RunE:  runStatus,
}

func init() {
	StatusCmd.Flags().StringVarP(&statusConfig, "config", "c", "", "Path to sqlport.yaml (default: search working directory)")
	StatusCmd.Flags().IntVar(&statusLogs, "logs", 10, "Number of recent log entries to show (0 to hide)")
	StatusCmd.Flags().BoolVar(&statusNoColor, "no-color", false, "Disable colored output")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(statusConfig)
	if err != nil {
		return err
	}

	store, err := metastore.Open(cfg.General.MetadataPath, cfg.General.ProjectName, logger.Get())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	c := color.New(!statusNoColor)

	summary, err := store.SummarizeMigrations(ctx)
	if err != nil {
		return err
	}

	fmt.Println(c.Header("Migration status"))
	if len(summary) == 0 {
		fmt.Println("  No migrations recorded. Run 'sqlport port' first.")
	} else {
		statuses := make([]string, 0, len(summary))
		for s := range summary {
			statuses = append(statuses, s)
		}
		sort.Strings(statuses)
		for _, s := range statuses {
			fmt.Printf("  %s %s: %d\n", statusSymbol(c, s), s, summary[s])
		}
	}

	if statusLogs <= 0 {
		return nil
	}
	entries, err := store.RecentExecutionLogs(ctx, statusLogs)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	fmt.Println()
	fmt.Println(c.Header("Recent runs"))
	for _, e := range entries {
		line := fmt.Sprintf("[%s] %s: %s", e.CreatedAt, e.Level, e.Event)
		if e.Detail != "" {
			line += " " + e.Detail
		}
		fmt.Printf("  %s\n", line)
	}
	return nil
}

func statusSymbol(c *color.Color, status string) string {
	switch status {
	case string(workflow.PhaseVerifiedOK):
		return c.Ok("+")
	case string(workflow.PhaseFailed), string(workflow.PhaseVerifiedFail):
		return c.Fail("-")
	default:
		return c.Warn("~")
	}
}
