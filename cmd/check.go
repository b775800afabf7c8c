package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/casemigrate/database"
	"github.com/ridoystarlord/casemigrate/diff"
	"github.com/ridoystarlord/casemigrate/runorder"
	"github.com/ridoystarlord/casemigrate/source"
	"github.com/ridoystarlord/casemigrate/target"
)

var (
	checkTimeout   time.Duration
	checkNoBuiltin bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare migrated row counts with the expected counts",
	Long: `Run the data count checks after a migration.

The built-in checks look for applications without document packs, duplicate
file paths and process keys above their sequence. Further checks are read
from the checks section of pipeline.yaml; a check with legacy_sql compares
against a count taken from the legacy database.

Examples:
  casemigrate check                    # Built-in and pipeline.yaml checks
  casemigrate check --no-builtin       # Only pipeline.yaml checks
  casemigrate check --timeout 5m
`,
	Run: func(cmd *cobra.Command, args []string) {
		defer database.ClosePools()

		report, err := runChecks()
		exitOnError("Data check failed", err)

		report.Print(os.Stdout)
		if report.Failures > 0 {
			database.ClosePools()
			os.Exit(1)
		}
	},
}

func init() {
	checkCmd.Flags().DurationVarP(&checkTimeout, "timeout", "t", 10*time.Minute, "Timeout for all checks")
	checkCmd.Flags().BoolVar(&checkNoBuiltin, "no-builtin", false, "Skip the built-in checks")
}

func runChecks() (diff.Report, error) {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	var checks []diff.CountCheck
	if !checkNoBuiltin {
		checks = append(checks, runorder.Checks()...)
	}
	checks = append(checks, loadPipeline().Checks...)
	if len(checks) == 0 {
		fmt.Println("📋 No checks to run")
		return diff.Report{}, nil
	}

	pool, err := database.GetPool()
	if err != nil {
		return diff.Report{}, fmt.Errorf("failed to get database pool: %w", err)
	}

	var legacy source.Source
	if needsLegacy(checks) {
		legacyPool, err := database.GetLegacyPool()
		if err != nil {
			return diff.Report{}, fmt.Errorf("failed to get legacy database pool: %w", err)
		}
		legacy = source.NewPostgres(legacyPool)
	}

	return diff.CompareCounts(ctx, target.NewPostgres(pool), legacy, checks)
}

func needsLegacy(checks []diff.CountCheck) bool {
	for _, c := range checks {
		if c.LegacySQL != "" {
			return true
		}
	}
	return false
}
