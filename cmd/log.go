package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/casemigrate/database"
	"github.com/ridoystarlord/casemigrate/runner"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent migration activities",
	Long: `Show recent migration log entries, newest first.

Examples:
  casemigrate log                    # Show recent migration logs
  casemigrate log --limit 20         # Show last 20 log entries
`,
	Run: func(cmd *cobra.Command, args []string) {
		defer database.ClosePools()
		ctx := context.Background()

		pool, err := database.GetPool()
		exitOnError("Error connecting to database", err)
		exitOnError("Error preparing tracking tables", runner.EnsureTables(ctx, pool))

		logs, err := runner.GetRunLogs(ctx, pool, logLimit)
		exitOnError("Error getting migration logs", err)

		if len(logs) == 0 {
			fmt.Println("📋 No migration logs found")
			return
		}

		showRunLogs(logs)
	},
}

func showRunLogs(logs []runner.RunLog) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	blue := color.New(color.FgBlue, color.Bold)
	cyan := color.New(color.FgCyan)

	fmt.Println("📋 Recent Migration Activities")
	fmt.Println(strings.Repeat("=", 60))

	for i, entry := range logs {
		fmt.Printf("\n%d. ", i+1)

		switch entry.Level {
		case "INFO":
			blue.Print("ℹ️  ")
		case "WARN":
			yellow.Print("⚠️  ")
		case "ERROR":
			red.Print("❌ ")
		case "SUCCESS":
			green.Print("✅ ")
		default:
			fmt.Print("📝 ")
		}

		cyan.Printf("[%s] ", entry.Timestamp.Format(time.DateTime))
		fmt.Print(entry.Message)
		if entry.User != "" {
			fmt.Printf(" (by %s)", entry.User)
		}
		fmt.Println()

		if entry.Details != "" {
			cyan.Printf("   📄 Details: %s\n", entry.Details)
		}
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("📊 Showing %d recent log entries\n", len(logs))
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "l", 50, "Limit number of log entries to show")
}
