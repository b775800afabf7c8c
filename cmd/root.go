package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/casemigrate/loader"
	"github.com/ridoystarlord/casemigrate/utils"
)

var pipelineFile string

var rootCmd = &cobra.Command{
	Use:   "casemigrate",
	Short: "Migrate a legacy case-management database into the new service",
	Long: `casemigrate copies reference data, users, import and export applications and
their files from the legacy database into the new schema.

Data moves in two stages: export copies legacy rows into dm_* staging tables,
import loads the staging tables into the target tables. Files are uploaded to
object storage separately.

Examples:

  casemigrate init
  casemigrate validate
  casemigrate export
  casemigrate import --start ia.12
  casemigrate files --queries small
  casemigrate check
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.LoadEnv()
	},
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("❌", err)
		os.Exit(1)
	}
}

// Register subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&pipelineFile, "pipeline", loader.DefaultPipelineFile, "Pipeline file with batch size, query overrides and checks")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(docsCmd)
}

func loadPipeline() *loader.PipelineConfig {
	cfg, err := loader.LoadPipelineFile(pipelineFile)
	if err != nil {
		fmt.Println("❌ Error loading pipeline file:", err)
		os.Exit(1)
	}
	return cfg
}
