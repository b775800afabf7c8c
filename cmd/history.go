package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/casemigrate/database"
	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/runner"
)

var (
	historyLimit    int
	historyDomain   string
	historyDetailed bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the recorded migration steps",
	Long: `Show every recorded step with its stage, row count, duration and user.

Examples:
  casemigrate history                    # Show all recorded steps
  casemigrate history --limit 20         # Show the last 20 steps
  casemigrate history --domain ia        # Show import application steps
  casemigrate history --detailed         # Show detailed information
`,
	Run: func(cmd *cobra.Command, args []string) {
		defer database.ClosePools()
		ctx := context.Background()

		pool, err := database.GetPool()
		exitOnError("Error connecting to database", err)
		exitOnError("Error preparing tracking tables", runner.EnsureTables(ctx, pool))

		domain := ""
		if historyDomain != "" {
			d, err := pipeline.ParseDomain(historyDomain)
			exitOnError("Error reading --domain", err)
			domain = d.String()
		}

		history, err := runner.GetRunHistory(ctx, pool, historyLimit, domain)
		exitOnError("Error getting migration history", err)

		if len(history) == 0 {
			fmt.Println("📋 No migration history found")
			return
		}

		showRunHistory(history, historyDetailed)
	},
}

func showRunHistory(history []runner.RunRecord, detailed bool) {
	fmt.Println("📋 Migration History")
	fmt.Println(strings.Repeat("=", 60))

	if detailed {
		showDetailedHistory(history)
	} else {
		showSummaryHistory(history)
	}
}

func statusIcon(status string) string {
	switch status {
	case "success":
		return color.New(color.FgGreen, color.Bold).Sprint("✅")
	case "failed":
		return color.New(color.FgRed, color.Bold).Sprint("❌")
	}
	return color.New(color.FgYellow, color.Bold).Sprint("⚠️")
}

func showDetailedHistory(history []runner.RunRecord) {
	red := color.New(color.FgRed, color.Bold)
	blue := color.New(color.FgBlue, color.Bold)
	cyan := color.New(color.FgCyan)

	for i, record := range history {
		fmt.Printf("\n%d. %s ", i+1, statusIcon(record.Status))
		blue.Printf("%s %s.%d %s\n", record.Stage, record.Domain, record.StepIndex, record.StepName)

		cyan.Printf("   🆔 Run: %s (%s)\n", record.RunID, record.Command)
		cyan.Printf("   📅 Executed: %s\n", record.ExecutedAt.Format(time.DateTime))
		if record.ExecutionTime > 0 {
			cyan.Printf("   ⏱️  Duration: %v\n", record.ExecutionTime.Round(time.Millisecond))
		}
		cyan.Printf("   📊 Rows: %d\n", record.Rows)
		if record.ExecutedBy != "" {
			cyan.Printf("   👤 User: %s\n", record.ExecutedBy)
		}

		if record.Status == "failed" {
			if record.ErrorMessage != "" {
				red.Printf("   💥 Error: %s\n", record.ErrorMessage)
			}
			if record.Resume != "" {
				cyan.Printf("   🔁 Resume: --start %s\n", record.Resume)
			}
		}
	}
}

func showSummaryHistory(history []runner.RunRecord) {
	blue := color.New(color.FgBlue, color.Bold)

	fmt.Printf("%-4s %-6s %-35s %-10s %-12s %s\n", "ID", "Status", "Step", "Rows", "Duration", "Date")
	fmt.Println(strings.Repeat("-", 90))

	var (
		successCount, failedCount int
		rows                      int64
		totalDuration             time.Duration
	)
	for i, record := range history {
		duration := "N/A"
		if record.ExecutionTime > 0 {
			duration = record.ExecutionTime.Round(time.Millisecond).String()
			totalDuration += record.ExecutionTime
		}

		step := fmt.Sprintf("%s %s.%d %s", record.Stage, record.Domain, record.StepIndex, record.StepName)
		if len(step) > 33 {
			step = step[:30] + "..."
		}

		fmt.Printf("%-4d %-6s %-35s %-10d %-12s %s\n",
			i+1,
			statusIcon(record.Status),
			blue.Sprint(step),
			record.Rows,
			duration,
			record.ExecutedAt.Format("2006-01-02 15:04"),
		)

		switch record.Status {
		case "success":
			successCount++
		case "failed":
			failedCount++
		}
		rows += record.Rows
	}

	fmt.Println(strings.Repeat("-", 90))
	fmt.Printf("📊 Summary: %d steps, %d successful, %d failed, %d rows\n",
		len(history), successCount, failedCount, rows)
	if totalDuration > 0 {
		fmt.Printf("⏱️  Total execution time: %v\n", totalDuration.Round(time.Millisecond))
	}
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 0, "Limit number of records to show (0 = all)")
	historyCmd.Flags().StringVar(&historyDomain, "domain", "", "Filter by domain (r, u, ia, ea, f)")
	historyCmd.Flags().BoolVarP(&historyDetailed, "detailed", "d", false, "Show detailed information")
}
