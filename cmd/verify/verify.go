// Package verify implements the command that re-verifies rendered outputs
// against the target database without committing anything.
package verify

import (
	"fmt"
	"os"
	"path/filepath"

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
	verifyConfig  string
	verifyFile    string
	verifyNoColor bool
)

var VerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-verify rendered outputs against the target database",
	Long:  "Execute rendered SQL against the target database inside a transaction that is always rolled back. With --file, verify a single SQL file instead of the stored outputs.",
	RunE:  runVerify,
}

func init() {
	VerifyCmd.Flags().StringVarP(&verifyConfig, "config", "c", "", "Path to sqlport.yaml (default: search working directory)")
	VerifyCmd.Flags().StringVar(&verifyFile, "file", "", "Verify a single SQL file instead of stored outputs")
	VerifyCmd.Flags().BoolVar(&verifyNoColor, "no-color", false, "Disable colored output")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(verifyConfig)
	if err != nil {
		return err
	}
	log := logger.Get()

	scripts := verifier.New(util.TargetConnector(cfg.Database.Target), verifier.Options{
		Policy: verifier.Policy{
			AllowDangerousStatements: cfg.Verification.AllowDangerousStatements,
			AllowProcedureExecution:  cfg.Verification.AllowProcedureExecution,
		},
		StatementTimeoutMS: cfg.Database.Target.StatementTimeoutMS,
	}, log)

	ctx := cmd.Context()
	c := color.New(!verifyNoColor)

	if verifyFile != "" {
		content, err := os.ReadFile(verifyFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", verifyFile, err)
		}
		res := scripts.Verify(ctx, string(content))
		printResult(c, filepath.Base(verifyFile), res)
		if !res.Success {
			return fmt.Errorf("verification failed")
		}
		return nil
	}

	store, err := metastore.Open(cfg.General.MetadataPath, cfg.General.ProjectName, log)
	if err != nil {
		return err
	}
	defer store.Close()

	outputs, err := store.ListRenderedOutputs(ctx, 0)
	if err != nil {
		return err
	}
	if len(outputs) == 0 {
		fmt.Println("No rendered outputs to verify. Run 'sqlport port' first.")
		return nil
	}

	var failed int
	for _, out := range outputs {
		if out.SQLText == "" {
			continue
		}
		res := scripts.Verify(ctx, out.SQLText)
		printResult(c, out.FileName, res)

		out.Verified = res.Success
		if res.Success {
			out.Status = string(workflow.PhaseVerifiedOK)
			out.LastError = ""
		} else {
			out.Status = string(workflow.PhaseVerifiedFail)
			out.LastError = res.Error
			failed++
		}
		if err := store.SaveRenderedOutput(ctx, out); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d output(s) failed verification", failed)
	}
	return nil
}

func printResult(c *color.Color, name string, res verifier.Result) {
	if res.Success {
		fmt.Printf("  %s %s (%d statement(s) executed, %d skipped)\n",
			c.Ok("+"), name, res.ExecutedCount, len(res.SkippedStatements))
		if res.Notes != "" {
			fmt.Printf("      %s\n", c.Warn(res.Notes))
		}
		return
	}
	fmt.Printf("  %s %s\n", c.Fail("-"), name)
	fmt.Printf("      %s\n", c.Fail(res.Error))
}
