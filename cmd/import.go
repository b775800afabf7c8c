package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/casemigrate/database"
)

var importFlags runFlags

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the staging tables into the target tables",
	Long: `Parse the staged XML documents, load every staging table into its target
table, then link many-to-many relations, backfill document packs and derive
tasks.

Examples:
  casemigrate import                       # Import every domain
  casemigrate import --skip-xml            # Staged XML was already parsed
  casemigrate import --start ea.3          # Resume at the 3rd export application load
  casemigrate import --start ia-m2m.2      # Resume at the 2nd import application relation
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		defer database.ClosePools()

		m, err := newMigration(ctx, cmd, "import", &importFlags)
		exitOnError("Error preparing import", err)

		m.finish(ctx, "import", m.controller.Import(ctx, m.opts))
	},
}

func init() {
	importFlags.register(importCmd)
}
