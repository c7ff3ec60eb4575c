// Package contextcmd implements the command that prints the schema context
// document the rewrite service would receive for a SQL script.
package contextcmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlport/sqlport/internal/analyzer"
	"github.com/sqlport/sqlport/internal/config"
	"github.com/sqlport/sqlport/internal/logger"
	"github.com/sqlport/sqlport/internal/metastore"
	"github.com/sqlport/sqlport/internal/rag"
)

var contextConfig string

var ContextCmd = &cobra.Command{
	Use:   "context <file.sql>",
	Short: "Show the schema context document for a SQL script",
	Long:  "Resolve the tables, views, and routines a script references and print the stored definitions the rewrite service would see.",
	Args:  cobra.ExactArgs(1),
	RunE:  runContext,
}

func init() {
	ContextCmd.Flags().StringVarP(&contextConfig, "config", "c", "", "Path to sqlport.yaml (default: search working directory)")
}

func runContext(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(contextConfig)
	if err != nil {
		return err
	}
	log := logger.Get()

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	store, err := metastore.Open(cfg.General.MetadataPath, cfg.General.ProjectName, log)
	if err != nil {
		return err
	}
	defer store.Close()

	refs := analyzer.New(cfg.Database.Source.Type, log)
	res, err := rag.New(refs, store, log).Build(cmd.Context(), string(content))
	if err != nil {
		return err
	}

	if len(res.Names) == 0 {
		fmt.Println("No object references found in script.")
		return nil
	}

	fmt.Printf("References: %s\n", strings.Join(res.Names, ", "))
	if len(res.Schemas) > 0 {
		fmt.Printf("Schemas:    %s\n", strings.Join(res.Schemas, ", "))
	}
	if res.Text == "" {
		fmt.Println("No stored definitions matched. Load schema metadata first.")
		return nil
	}
	fmt.Println()
	fmt.Print(res.Text)
	return nil
}
