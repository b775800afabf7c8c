package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/casemigrate/database"
	"github.com/ridoystarlord/casemigrate/introspect"
	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/runorder"
	"github.com/ridoystarlord/casemigrate/storage"
	"github.com/ridoystarlord/casemigrate/utils"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database and object storage connectivity",
	Long: `Check that the legacy database, the target database and the S3 bucket are
reachable, and that every table the loads use exists with a key sequence.

Examples:
  casemigrate health                    # Check everything
  casemigrate health --skip-s3          # Databases only
  casemigrate health --timeout 10s      # Set custom timeout
`,
	Run: func(cmd *cobra.Command, args []string) {
		defer database.ClosePools()
		if err := checkHealth(); err != nil {
			fmt.Printf("❌ Health check failed: %v\n", err)
			database.ClosePools()
			os.Exit(1)
		}
		fmt.Println("✅ Everything is healthy and accessible")
	},
}

var (
	healthTimeout time.Duration
	healthSkipS3  bool
)

func init() {
	healthCmd.Flags().DurationVarP(&healthTimeout, "timeout", "t", 30*time.Second, "Timeout for health check")
	healthCmd.Flags().BoolVar(&healthSkipS3, "skip-s3", false, "Do not check the S3 bucket")
}

func checkHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	legacy, err := database.GetLegacyPool()
	if err != nil {
		return fmt.Errorf("failed to get legacy database pool: %w", err)
	}
	if err := legacy.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping legacy database: %w", err)
	}
	fmt.Println("✅ Legacy database is reachable")

	pool, err := database.GetPool()
	if err != nil {
		return fmt.Errorf("failed to get database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	fmt.Println("✅ Target database is reachable")

	tables := loadTables(runorder.Plans())
	existing, err := introspect.InspectTables(ctx, pool, tables)
	if err != nil {
		return fmt.Errorf("failed to inspect tables: %w", err)
	}
	if err := reportTables(tables, existing); err != nil {
		return err
	}

	if healthSkipS3 {
		return nil
	}
	if _, err := storage.NewS3(ctx, storage.S3Config{
		Bucket:         utils.GetEnv("S3_BUCKET", ""),
		Region:         utils.GetEnv("S3_REGION", ""),
		Endpoint:       utils.GetEnv("S3_ENDPOINT", ""),
		ForcePathStyle: utils.GetEnvBool("S3_FORCE_PATH_STYLE", false),
	}); err != nil {
		return fmt.Errorf("failed to reach S3 bucket: %w", err)
	}
	fmt.Println("✅ S3 bucket is reachable")
	return nil
}

// loadTables lists the staging and target tables of every load, sorted.
func loadTables(plans pipeline.Plans) []string {
	seen := map[string]bool{}
	var tables []string
	for _, d := range pipeline.Domains {
		for _, st := range plans[d].Loads {
			for _, t := range []string{st.Source, st.Target} {
				if !seen[t] {
					seen[t] = true
					tables = append(tables, t)
				}
			}
		}
	}
	slices.Sort(tables)
	return tables
}

// reportTables prints what the loads need but the database lacks. Targets
// without an id sequence cannot take explicit keys followed by a reset.
func reportTables(wanted []string, existing []introspect.ExistingTable) error {
	found := map[string]introspect.ExistingTable{}
	foreignKeys := 0
	for _, t := range existing {
		found[t.TableName] = t
		foreignKeys += len(t.ForeignKeys)
	}

	var missing, noSequence []string
	for _, name := range wanted {
		t, ok := found[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		idx := slices.IndexFunc(t.Columns, func(c introspect.ExistingColumn) bool { return c.ColumnName == "id" })
		if idx >= 0 && !t.Columns[idx].HasSequence() {
			noSequence = append(noSequence, name)
		}
	}

	fmt.Printf("📊 %d of %d tables present, %d foreign keys\n", len(existing), len(wanted), foreignKeys)
	for _, name := range noSequence {
		fmt.Printf("⚠️  %s.id has no sequence\n", name)
	}
	if len(missing) > 0 {
		for _, name := range missing {
			fmt.Printf("   - missing: %s\n", name)
		}
		fmt.Println("   Run the target service's schema migrations before importing")
		return fmt.Errorf("%d tables are missing", len(missing))
	}
	return nil
}
