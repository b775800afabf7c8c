package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/casemigrate/database"
	"github.com/ridoystarlord/casemigrate/runorder"
	"github.com/ridoystarlord/casemigrate/target"
	"github.com/ridoystarlord/casemigrate/utils"
	"github.com/ridoystarlord/casemigrate/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the migration plans",
	Long: `Validate the query, load and relation descriptors of every domain.

The validator works in two modes:
- Offline: checks descriptor shape, key spaces, duplicate query names and
  loads of tables nothing stages (no database required)
- Online: also checks that every staging and target table and column the
  descriptors name exists (requires DATABASE_URL)

Examples:
  casemigrate validate                    # Online when DATABASE_URL is set
  casemigrate validate --offline          # Never connect
  casemigrate validate --format json      # Output validation results as JSON
`,
	Run: func(cmd *cobra.Command, args []string) {
		defer database.ClosePools()
		if err := validatePlans(); err != nil {
			fmt.Printf("❌ Plan validation failed: %v\n", err)
			database.ClosePools()
			os.Exit(1)
		}
	},
}

var (
	validateFormat  string
	validateOffline bool
	validateTimeout time.Duration
)

func init() {
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")
	validateCmd.Flags().BoolVar(&validateOffline, "offline", false, "Skip the checks against the database")
	validateCmd.Flags().DurationVarP(&validateTimeout, "timeout", "t", time.Minute, "Timeout for the database checks")
}

func validatePlans() error {
	plans := runorder.Plans()
	result := validator.ValidatePlans(plans, runorder.KeySpaces())

	if validateOffline || utils.GetDatabaseURL() == "" {
		fmt.Fprintln(os.Stderr, "ℹ️  DATABASE_URL not set or --offline given, using offline validation.")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
		defer cancel()

		pool, err := database.GetPool()
		if err != nil {
			return fmt.Errorf("failed to get database pool: %w", err)
		}
		online, err := validator.ValidateAgainstStore(ctx, target.NewPostgres(pool), plans)
		if err != nil {
			return fmt.Errorf("failed to validate against database: %w", err)
		}
		result.Merge(online)
	}

	if validateFormat == "json" {
		if err := outputJSON(result); err != nil {
			return err
		}
	} else {
		outputText(result)
	}
	return result.Err()
}

func outputJSON(result *validator.ValidationResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printFindings(title string, findings []validator.ValidationError) {
	if len(findings) == 0 {
		return
	}
	fmt.Printf("\n%s (%d):\n", title, len(findings))
	for i, f := range findings {
		fmt.Printf("  %d. ", i+1)
		if f.Domain != "" {
			fmt.Printf("{%s} ", f.Domain)
		}
		if f.Table != "" {
			fmt.Printf("[%s]", f.Table)
		}
		if f.Column != "" {
			fmt.Printf(".%s", f.Column)
		}
		fmt.Printf(": %s\n", f.Message)
	}
}

func outputText(result *validator.ValidationResult) {
	if result.Valid {
		color.Green("✅ Plan validation passed!")
	} else {
		color.Red("❌ Plan validation failed!")
	}

	printFindings("🔴 Errors", result.Errors)
	printFindings("🟡 Warnings", result.Warnings)
	printFindings("🔵 Info", result.Info)

	fmt.Printf("\n📊 Summary:\n")
	fmt.Printf("  • Errors: %d\n", len(result.Errors))
	fmt.Printf("  • Warnings: %d\n", len(result.Warnings))
	fmt.Printf("  • Info: %d\n", len(result.Info))

	if result.Valid {
		fmt.Printf("\n🎉 The plans are ready to run!\n")
	} else {
		fmt.Printf("\n💡 Fix the errors above before running export or import.\n")
	}
}
