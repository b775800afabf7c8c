package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/casemigrate/database"
	"github.com/ridoystarlord/casemigrate/files"
	"github.com/ridoystarlord/casemigrate/logging"
	"github.com/ridoystarlord/casemigrate/runorder"
	"github.com/ridoystarlord/casemigrate/source"
	"github.com/ridoystarlord/casemigrate/storage"
	"github.com/ridoystarlord/casemigrate/utils"
)

var (
	filesLimit         int
	filesQueries       []string
	filesIgnoreLastRun bool
	filesCountOnly     bool
	filesRunBatchSize  int64
	filesPageSize      int
	filesPrefix        string
	filesForceLog      bool
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Upload legacy file contents to object storage",
	Long: `Stream file contents out of the legacy database and upload them to the S3
bucket named by S3_BUCKET. Progress is checkpointed in the bucket so an
interrupted run continues where it stopped.

Query groups: small, large.

Examples:
  casemigrate files                                  # Every file query
  casemigrate files --queries small                  # Only the small-file group
  casemigrate files --queries "Mailshot Files" --limit 100
  casemigrate files --count-only                     # Report counts and sizes only
  casemigrate files --ignore-last-run                # Rescan from the start
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		defer database.ClosePools()

		log := logging.FromEnv("files", filesForceLog)
		cfg := loadPipeline()

		queries, err := files.SelectQueries(runorder.FileQueries(), runorder.FileGroups(), filesQueries)
		exitOnError("Error selecting file queries", err)

		legacyPool, err := database.GetLegacyPool()
		exitOnError("Error connecting to legacy database", err)

		objects, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:         utils.GetEnv("S3_BUCKET", ""),
			Region:         utils.GetEnv("S3_REGION", ""),
			Endpoint:       utils.GetEnv("S3_ENDPOINT", ""),
			ForcePathStyle: utils.GetEnvBool("S3_FORCE_PATH_STYLE", false),
		})
		exitOnError("Error connecting to object storage", err)

		prefix := filesPrefix
		if !cmd.Flags().Changed("s3-file-prefix") && cfg.FilePrefix != "" {
			prefix = cfg.FilePrefix
		}

		processor := files.NewProcessor(source.NewPostgres(legacyPool), objects, files.Options{
			Limit:         filesLimit,
			IgnoreLastRun: filesIgnoreLastRun,
			CountOnly:     filesCountOnly,
			RunBatchSize:  filesRunBatchSize,
			PageSize:      filesPageSize,
			Prefix:        prefix,
			Overrides:     cfg.Overrides,
		}, log, os.Stdout)

		_, err = processor.Run(ctx, queries)
		exitOnError("File upload failed", err)
	},
}

func init() {
	filesCmd.Flags().IntVar(&filesLimit, "limit", 0, "Maximum rows per query (0 = no limit)")
	filesCmd.Flags().StringSliceVar(&filesQueries, "queries", nil, "Query names or groups to run (default all)")
	filesCmd.Flags().BoolVar(&filesIgnoreLastRun, "ignore-last-run", false, "Ignore checkpoints and start from the default parameters")
	filesCmd.Flags().BoolVar(&filesCountOnly, "count-only", false, "Only report file counts and sizes")
	filesCmd.Flags().Int64Var(&filesRunBatchSize, "run-batch-size", files.DefaultRunBatchSize, "Files uploaded between checkpoints")
	filesCmd.Flags().IntVar(&filesPageSize, "number-of-rows", files.DefaultPageSize, "Rows fetched from the legacy database at a time")
	filesCmd.Flags().StringVar(&filesPrefix, "s3-file-prefix", "", "Folder prepended to every object path")
	filesCmd.Flags().BoolVar(&filesForceLog, "force-log", false, "Log at debug level")
}
