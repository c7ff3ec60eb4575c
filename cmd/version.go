package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlport/sqlport/internal/version"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the version number of sqlport",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sqlport v%s@%s %s %s\n", version.App(), GitCommit, version.Platform(), BuildDate)
	},
}
