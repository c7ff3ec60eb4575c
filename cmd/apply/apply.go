// Package apply implements the command that applies verified outputs to the
// target database with commit discipline.
package apply

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlport/sqlport/cmd/util"
	"github.com/sqlport/sqlport/internal/color"
	"github.com/sqlport/sqlport/internal/config"
	"github.com/sqlport/sqlport/internal/logger"
	"github.com/sqlport/sqlport/internal/metastore"
	"github.com/sqlport/sqlport/internal/verifier"
	"github.com/sqlport/sqlport/internal/workflow"
)

var (
	applyConfig      string
	applyFile        string
	applyAutoApprove bool
	applyNoColor     bool
)

var ApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply verified outputs to the target database",
	Long:  "Execute rendered SQL against the target database and commit on success. Only outputs that previously passed verification are applied; each script runs in its own transaction and rolls back on failure.",
	RunE:  runApply,
}

func init() {
	ApplyCmd.Flags().StringVarP(&applyConfig, "config", "c", "", "Path to sqlport.yaml (default: search working directory)")
	ApplyCmd.Flags().StringVar(&applyFile, "file", "", "Apply a single SQL file instead of stored outputs")
	ApplyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Apply changes without prompting for approval")
	ApplyCmd.Flags().BoolVar(&applyNoColor, "no-color", false, "Disable colored output")
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(applyConfig)
	if err != nil {
		return err
	}
	log := logger.Get()
	c := color.New(!applyNoColor)
	ctx := cmd.Context()

	scripts := verifier.New(util.TargetConnector(cfg.Database.Target), verifier.Options{
		Policy: verifier.Policy{
			AllowDangerousStatements: cfg.Verification.AllowDangerousStatements,
			AllowProcedureExecution:  cfg.Verification.AllowProcedureExecution,
		},
		StatementTimeoutMS: cfg.Database.Target.StatementTimeoutMS,
	}, log)

	type pending struct {
		name    string
		sqlText string
		stored  *metastore.RenderedOutput
	}
	var queue []pending

	var store *metastore.Store
	if applyFile != "" {
		content, err := os.ReadFile(applyFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", applyFile, err)
		}
		queue = append(queue, pending{name: filepath.Base(applyFile), sqlText: string(content)})
	} else {
		store, err = metastore.Open(cfg.General.MetadataPath, cfg.General.ProjectName, log)
		if err != nil {
			return err
		}
		defer store.Close()

		outputs, err := store.ListRenderedOutputs(ctx, 0)
		if err != nil {
			return err
		}
		for _, out := range outputs {
			if !out.Verified || out.SQLText == "" {
				continue
			}
			stored := out
			queue = append(queue, pending{name: out.FileName, sqlText: out.SQLText, stored: &stored})
		}
	}

	if len(queue) == 0 {
		fmt.Println("No verified outputs to apply. Run 'sqlport port' or 'sqlport verify' first.")
		return nil
	}

	fmt.Println(c.Header(fmt.Sprintf("About to apply %d script(s) to the target database:", len(queue))))
	for _, item := range queue {
		fmt.Printf("  %s %s\n", c.Ok("+"), item.name)
	}

	if !applyAutoApprove {
		fmt.Print("\nDo you want to apply these changes? (yes/no): ")
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read user input: %w", err)
		}

		response = strings.TrimSpace(strings.ToLower(response))
		if response != "yes" && response != "y" {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}

	fmt.Println("\nApplying changes...")

	var failed int
	for _, item := range queue {
		res := scripts.Apply(ctx, item.sqlText)
		if res.Success {
			fmt.Printf("  %s %s (%d statement(s) committed)\n", c.Ok("+"), item.name, res.ExecutedCount)
		} else {
			failed++
			fmt.Printf("  %s %s\n      %s\n", c.Fail("-"), item.name, c.Fail(res.Error))
		}

		if item.stored != nil {
			if res.Success {
				item.stored.Status = "APPLIED"
				item.stored.LastError = ""
			} else {
				item.stored.Status = string(workflow.PhaseVerifiedFail)
				item.stored.Verified = false
				item.stored.LastError = res.Error
			}
			if err := store.SaveRenderedOutput(ctx, *item.stored); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d script(s) failed to apply", failed)
	}
	fmt.Println("Changes applied successfully!")
	return nil
}
