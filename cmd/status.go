package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/casemigrate/database"
	"github.com/ridoystarlord/casemigrate/runner"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the outcome of the last migration run",
	Run: func(cmd *cobra.Command, args []string) {
		defer database.ClosePools()
		ctx := context.Background()

		pool, err := database.GetPool()
		exitOnError("Status error", err)
		exitOnError("Status error", runner.EnsureTables(ctx, pool))

		last, err := runner.LastRun(ctx, pool)
		exitOnError("Status error", err)

		if last == nil {
			fmt.Println("📋 No migration runs recorded yet")
			return
		}

		fmt.Printf("🆔 Run: %s (%s)\n", last.RunID, last.Command)
		fmt.Printf("📅 Started: %s\n", last.StartedAt.Format(time.DateTime))
		fmt.Printf("📊 Steps: %d, rows: %d\n", last.Steps, last.Rows)

		if len(last.Failed) == 0 {
			fmt.Println("\n✅ No failed steps")
			return
		}

		fmt.Println("\n❌ Failed steps:")
		for _, f := range last.Failed {
			fmt.Printf("   - %s %s.%d %s: %s\n", f.Stage, f.Domain, f.StepIndex, f.StepName, f.ErrorMessage)
			if f.Resume != "" {
				fmt.Printf("     resume with --start %s\n", f.Resume)
			}
		}
	},
}
