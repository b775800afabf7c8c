package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/casemigrate/database"
	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/runorder"
)

var (
	migrateFlags  runFlags
	dryRunMigrate bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Export then import every domain",
	Long: `Run export followed by import with the same options.

A --start position resumes the import stage; export is skipped because the
staging tables already hold the exported rows. Resume a failed export with
'casemigrate export --start'.

Examples:
  casemigrate migrate
  casemigrate migrate --dry-run            # Print the SQL without running it
  casemigrate migrate --start ia.12
`,
	Run: func(cmd *cobra.Command, args []string) {
		if dryRunMigrate {
			opts, err := migrateFlags.options()
			exitOnError("Dry run failed", err)
			printStatements(runorder.Plans(), opts)
			return
		}

		ctx, cancel := signalContext()
		defer cancel()
		defer database.ClosePools()

		m, err := newMigration(ctx, cmd, "migrate", &migrateFlags)
		exitOnError("Error preparing migration", err)

		m.finish(ctx, "migrate", runMigration(ctx, m.controller, m.opts))
	},
}

func init() {
	migrateFlags.register(migrateCmd)
	migrateCmd.Flags().BoolVar(&dryRunMigrate, "dry-run", false, "Print the SQL that would be executed without running it")
}

func runMigration(ctx context.Context, c *pipeline.Controller, opts pipeline.Options) error {
	if opts.Start == nil {
		if err := c.Export(ctx, opts); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	if err := c.Import(ctx, opts); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return nil
}

func printStatements(plans pipeline.Plans, opts pipeline.Options) {
	for _, d := range pipeline.Domains {
		if opts.Skip[d] {
			continue
		}
		fmt.Fprintf(os.Stdout, "-- ==== %s ====\n", d)
		for _, stmt := range plans.Statements(d) {
			fmt.Fprintln(os.Stdout, stmt)
		}
		fmt.Fprintln(os.Stdout)
	}
}
