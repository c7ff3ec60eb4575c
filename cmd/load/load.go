// Package load implements the command that registers source SQL files in the
// metadata store.
package load

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlport/sqlport/internal/analyzer"
	"github.com/sqlport/sqlport/internal/config"
	"github.com/sqlport/sqlport/internal/include"
	"github.com/sqlport/sqlport/internal/logger"
	"github.com/sqlport/sqlport/internal/metastore"
)

var (
	loadConfig string
	loadDir    string
	loadSelect bool
)

var LoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Register source SQL files in the metadata store",
	Long:  "Scan a directory for .sql files and register them as source assets. Re-loading refreshes content and keeps existing selections.",
	RunE:  runLoad,
}

func init() {
	LoadCmd.Flags().StringVarP(&loadConfig, "config", "c", "", "Path to sqlport.yaml (default: search working directory)")
	LoadCmd.Flags().StringVar(&loadDir, "dir", "", "Directory containing source .sql files (required)")
	LoadCmd.Flags().BoolVar(&loadSelect, "select", false, "Mark newly loaded files as selected for porting")
	LoadCmd.MarkFlagRequired("dir")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(loadConfig)
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

	ctx := cmd.Context()
	var loaded, skipped int
	var fileNames []string
	err = filepath.WalkDir(loadDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".sql") {
			return nil
		}

		// Expand \i directives so the stored asset is self-contained.
		sqlText, err := include.NewProcessor(loadDir).ProcessFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if strings.TrimSpace(sqlText) == "" {
			log.Warn("skipping empty file", "path", path)
			skipped++
			return nil
		}

		schemas := strings.Join(refs.ExtractReferences(sqlText).SortedSchemas(), ",")
		if err := store.SyncSourceAsset(ctx, path, sqlText, schemas); err != nil {
			return err
		}
		fileNames = append(fileNames, filepath.Base(path))
		loaded++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", loadDir, err)
	}

	if loadSelect && len(fileNames) > 0 {
		if _, err := store.SetSelection(ctx, fileNames, true); err != nil {
			return err
		}
	}

	fmt.Printf("Loaded %d file(s) into project %q", loaded, store.Project())
	if skipped > 0 {
		fmt.Printf(" (%d empty file(s) skipped)", skipped)
	}
	fmt.Println()
	return nil
}
