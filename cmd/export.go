package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/casemigrate/database"
)

var exportFlags runFlags

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Copy legacy rows into the dm_* staging tables",
	Long: `Run every legacy query of every domain and store the rows in the staging
tables. Staging keys are assigned here, so a failed export is resumed with
--start rather than rerun.

Examples:
  casemigrate export                       # Export every domain
  casemigrate export --skip-ref --skip-user
  casemigrate export --start ia.4          # Resume at the 4th import application query
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		defer database.ClosePools()

		m, err := newMigration(ctx, cmd, "export", &exportFlags)
		exitOnError("Error preparing export", err)

		m.finish(ctx, "export", m.controller.Export(ctx, m.opts))
	},
}

func init() {
	exportFlags.register(exportCmd)
}
