package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/casemigrate/database"
	"github.com/ridoystarlord/casemigrate/logging"
	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/runner"
	"github.com/ridoystarlord/casemigrate/runorder"
	"github.com/ridoystarlord/casemigrate/source"
	"github.com/ridoystarlord/casemigrate/target"
	"github.com/ridoystarlord/casemigrate/validator"
)

// runFlags are shared by export, import and migrate.
type runFlags struct {
	batchSize  int
	skipRef    bool
	skipUser   bool
	skipIA     bool
	skipExport bool
	skipFile   bool
	skipXML    bool
	skipM2M    bool
	skipTasks  bool
	start      string
	forceLog   bool
}

func (f *runFlags) register(c *cobra.Command) {
	c.Flags().IntVar(&f.batchSize, "batchsize", pipeline.DefaultBatchSize, "Rows per insert batch")
	c.Flags().BoolVar(&f.skipRef, "skip-ref", false, "Skip reference data")
	c.Flags().BoolVar(&f.skipUser, "skip-user", false, "Skip users")
	c.Flags().BoolVar(&f.skipIA, "skip-ia", false, "Skip import applications")
	c.Flags().BoolVar(&f.skipExport, "skip-export", false, "Skip export applications")
	c.Flags().BoolVar(&f.skipFile, "skip-file", false, "Skip file metadata")
	c.Flags().BoolVar(&f.skipXML, "skip-xml", false, "Skip XML parsing")
	c.Flags().BoolVar(&f.skipM2M, "skip-m2m", false, "Skip many-to-many relations")
	c.Flags().BoolVar(&f.skipTasks, "skip-tasks", false, "Skip task derivation")
	c.Flags().StringVar(&f.start, "start", "", "Resume position, e.g. ia.12 or ea-m2m.3")
	c.Flags().BoolVar(&f.forceLog, "force-log", false, "Log at debug level")
}

func (f *runFlags) options() (pipeline.Options, error) {
	start, err := pipeline.ParseStart(f.start)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Skip: map[pipeline.Domain]bool{
			pipeline.Reference:         f.skipRef,
			pipeline.User:              f.skipUser,
			pipeline.ImportApplication: f.skipIA,
			pipeline.ExportApplication: f.skipExport,
			pipeline.File:              f.skipFile,
		},
		SkipXML:   f.skipXML,
		SkipM2M:   f.skipM2M,
		SkipTasks: f.skipTasks,
		Start:     start,
	}, nil
}

// migration holds what one export, import or migrate run needs.
type migration struct {
	controller *pipeline.Controller
	recorder   *runner.Recorder
	opts       pipeline.Options
	log        zerolog.Logger
}

// newMigration validates the plans, connects to both databases and wires
// the engine. Configuration errors stop here, before any data moves.
func newMigration(ctx context.Context, c *cobra.Command, command string, f *runFlags) (*migration, error) {
	log := logging.FromEnv(command, f.forceLog)

	opts, err := f.options()
	if err != nil {
		return nil, err
	}

	plans := runorder.Plans()
	if err := validator.ValidatePlans(plans, runorder.KeySpaces()).Err(); err != nil {
		return nil, err
	}

	cfg := loadPipeline()

	legacyPool, err := database.GetLegacyPool()
	if err != nil {
		return nil, fmt.Errorf("connect to legacy database: %w", err)
	}
	pool, err := database.GetPool()
	if err != nil {
		return nil, fmt.Errorf("connect to target database: %w", err)
	}

	store := target.NewPostgres(pool)
	engine := pipeline.NewEngine(source.NewPostgres(legacyPool), store, log)
	engine.Keys = runorder.Allocators(store)
	engine.Overrides = cfg.Overrides
	engine.BatchSize = f.batchSize
	if !c.Flags().Changed("batchsize") && cfg.BatchSize > 0 {
		engine.BatchSize = cfg.BatchSize
	}

	if err := runner.EnsureTables(ctx, pool); err != nil {
		return nil, err
	}
	recorder := runner.NewRecorder(pool, command)

	controller := pipeline.NewController(engine, plans, log)
	controller.Recorder = recorder

	log.Info().
		Str("run_id", recorder.RunID).
		Int("batch_size", engine.BatchSize).
		Str("start", opts.Start.String()).
		Msg("starting " + command)

	return &migration{controller: controller, recorder: recorder, opts: opts, log: log}, nil
}

// finish records the outcome of the run and exits on failure.
func (m *migration) finish(ctx context.Context, command string, err error) {
	if err != nil {
		_ = m.recorder.Log(context.WithoutCancel(ctx), "ERROR", command+" failed", "", err.Error())
		fmt.Printf("❌ %s failed: %v\n", command, err)
		database.ClosePools()
		os.Exit(1)
	}
	_ = m.recorder.Log(context.WithoutCancel(ctx), "SUCCESS", command+" complete", "", "run "+m.recorder.RunID)
	fmt.Printf("✅ %s complete (run %s)\n", command, m.recorder.RunID)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func exitOnError(msg string, err error) {
	if err != nil {
		fmt.Printf("❌ %s: %v\n", msg, err)
		database.ClosePools()
		os.Exit(1)
	}
}
