// Package port implements the command that runs the full porting pipeline
// over the selected source assets.
package port

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sqlport/sqlport/cmd/util"
	"github.com/sqlport/sqlport/internal/analyzer"
	"github.com/sqlport/sqlport/internal/batch"
	"github.com/sqlport/sqlport/internal/color"
	"github.com/sqlport/sqlport/internal/config"
	"github.com/sqlport/sqlport/internal/llm"
	"github.com/sqlport/sqlport/internal/logger"
	"github.com/sqlport/sqlport/internal/metastore"
	"github.com/sqlport/sqlport/internal/rag"
	"github.com/sqlport/sqlport/internal/transpile"
	"github.com/sqlport/sqlport/internal/verifier"
	"github.com/sqlport/sqlport/internal/workflow"
)

var (
	portConfig      string
	portChangedOnly bool
	portWorkers     int
	portExport      bool
	portNoColor     bool
)

var PortCmd = &cobra.Command{
	Use:   "port",
	Short: "Run the transpile/review/verify pipeline over selected assets",
	Long:  "Transpile every selected source asset to PostgreSQL, review and verify each candidate against the target database in rollback mode, and persist the results.",
	RunE:  runPort,
}

func init() {
	PortCmd.Flags().StringVarP(&portConfig, "config", "c", "", "Path to sqlport.yaml (default: search working directory)")
	PortCmd.Flags().BoolVar(&portChangedOnly, "changed-only", false, "Skip assets whose content is unchanged since their last rendered output")
	PortCmd.Flags().IntVar(&portWorkers, "workers", 0, "Worker count override (default: from config)")
	PortCmd.Flags().BoolVar(&portExport, "export", false, "Write verified outputs to the configured export directory")
	PortCmd.Flags().BoolVar(&portNoColor, "no-color", false, "Disable colored output")
}

func runPort(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(portConfig)
	if err != nil {
		return err
	}
	log := logger.Get()

	store, err := metastore.Open(cfg.General.MetadataPath, cfg.General.ProjectName, log)
	if err != nil {
		return err
	}
	defer store.Close()

	refs := analyzer.New(cfg.Database.Source.Type, log)
	contexts := rag.New(refs, store, log)

	client := llm.NewClient(llm.Options{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	}, log)

	scripts := verifier.New(util.TargetConnector(cfg.Database.Target), verifier.Options{
		Policy: verifier.Policy{
			AllowDangerousStatements: cfg.Verification.AllowDangerousStatements,
			AllowProcedureExecution:  cfg.Verification.AllowProcedureExecution,
		},
		StatementTimeoutMS: cfg.Database.Target.StatementTimeoutMS,
	}, log)

	controller := workflow.NewController(
		transpile.New(llm.NewTranspiler(client), log),
		llm.NewReviewer(client),
		llm.NewRewriter(client),
		contexts,
		scripts,
		workflow.Config{
			SourceDialect: cfg.Database.Source.Type,
			TargetDialect: cfg.Database.Target.Type,
			MaxRetries:    cfg.General.MaxRetries,
		},
		log,
	)

	workers := cfg.General.Workers
	if portWorkers > 0 {
		workers = portWorkers
	}

	summary, err := batch.New(store, controller, workers, log).Run(cmd.Context(), portChangedOnly)
	if err != nil {
		return err
	}
	if summary.Total == 0 {
		fmt.Println("No assets selected for porting. Run 'sqlport load --select' first.")
		return nil
	}

	c := color.New(!portNoColor)
	fmt.Println(c.Header(fmt.Sprintf("Run %s:", summary.RunID)))
	for _, res := range summary.Results {
		verified := res.State.Phase == workflow.PhaseVerifiedOK
		fmt.Println(c.FormatAssetLine(filepath.Base(res.FilePath), string(res.State.Phase), verified, res.State.RetryCount))
		if !verified && res.State.LastError != "" {
			fmt.Printf("      %s\n", c.Fail(res.State.LastError))
		}
	}
	fmt.Println(c.FormatRunSummary(summary.Succeeded, summary.Failed))

	if portExport {
		exported, err := exportVerified(cfg.General.ExportDir, summary)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d file(s) to %s\n", exported, cfg.General.ExportDir)
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d asset(s) failed", summary.Failed, summary.Total)
	}
	return nil
}

// exportVerified writes the target SQL of every verified asset to dir.
func exportVerified(dir string, summary batch.Summary) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create export directory: %w", err)
	}
	var exported int
	for _, res := range summary.Results {
		if res.State.Phase != workflow.PhaseVerifiedOK {
			continue
		}
		dest := filepath.Join(dir, filepath.Base(res.FilePath))
		if err := os.WriteFile(dest, []byte(res.State.TargetText+"\n"), 0o644); err != nil {
			return exported, fmt.Errorf("failed to export %s: %w", dest, err)
		}
		exported++
	}
	return exported, nil
}
