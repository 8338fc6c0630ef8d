package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dvloznov/budget-etl/internal/cleaning"
	"github.com/dvloznov/budget-etl/internal/config"
	"github.com/dvloznov/budget-etl/internal/gcs"
	"github.com/dvloznov/budget-etl/internal/gcsuploader"
	infraBQ "github.com/dvloznov/budget-etl/internal/infra/bigquery"
	"github.com/dvloznov/budget-etl/internal/infra/parquet"
	"github.com/dvloznov/budget-etl/internal/infra/sqlite"
	"github.com/dvloznov/budget-etl/internal/ingest"
	"github.com/dvloznov/budget-etl/internal/logger"
	"github.com/dvloznov/budget-etl/internal/metrics"
	"github.com/dvloznov/budget-etl/internal/pipeline"
	"github.com/dvloznov/budget-etl/internal/report"
	"github.com/dvloznov/budget-etl/internal/tracing"
)

const runTimeout = 10 * time.Minute

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// run executes one batch with the configuration built from args and prints
// the run summary to stdout.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "Path to a YAML config file (or set BUDGET_CONFIG)")
		expenses   = fs.String("expenses", "", "Expenses table: local .csv/.xlsx or gs:// URI")
		budgets    = fs.String("budgets", "", "Budgets table: local .csv/.xlsx or gs:// URI")
		lakeDir    = fs.String("lake", "", "Root directory of the Parquet lake")
		outputDir  = fs.String("output", "", "Directory of the Markdown report")
		database   = fs.String("db", "", "Path of the SQLite database")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, *expenses, *budgets, *lakeDir, *outputDir, *database)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	ctx = logger.WithContext(ctx, log)

	shutdown, err := tracing.Setup(cfg.Tracing, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()

	vocab := cleaning.DefaultVocabulary()
	if cfg.Vocabulary.File != "" {
		vocab, err = cleaning.LoadVocabulary(cfg.Vocabulary.File)
		if err != nil {
			return err
		}
	}

	store, err := sqlite.Open(ctx, cfg.Paths.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.Migrate(ctx, "ingest"); err != nil {
		return err
	}

	recorder := metrics.New()
	deps := pipeline.Deps{
		Snapshots:  parquet.NewStore(cfg.Paths.LakeDir),
		Gold:       store,
		Registry:   store,
		Reports:    report.NewFileSink(cfg.Paths.OutputDir),
		Metrics:    recorder,
		Vocabulary: vocab,
	}

	var storage gcs.StorageService
	if needsStorage(cfg) {
		svc, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()
		storage = svc
	}
	deps.Reader = ingest.NewReader(storage)

	if cfg.Archive.Enabled {
		deps.Archiver = gcsuploader.NewArchiver(storage, cfg.Archive.Bucket, cfg.Archive.Prefix)
	}

	if cfg.Warehouse.Enabled {
		mirror, err := infraBQ.NewMirror(ctx, cfg.Warehouse.ProjectID, cfg.Warehouse.Dataset, cfg.Warehouse.Location)
		if err != nil {
			return err
		}
		defer mirror.Close()
		deps.Mirrors = append(deps.Mirrors, mirror)
	}

	result, runErr := pipeline.NewRunner(deps).Run(ctx, pipeline.Inputs{
		Expenses: cfg.Inputs.Expenses,
		Budgets:  cfg.Inputs.Budgets,
	})

	if err := recorder.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		log.Warn().Err(err).Str("path", cfg.Metrics.TextfilePath).Msg("Failed to write metrics textfile")
	}

	if result != nil {
		printSummary(stdout, result)
	}
	if runErr != nil {
		log.Error().Err(runErr).Msg("Ingestion failed")
		return runErr
	}
	return nil
}

func applyOverrides(cfg *config.Config, expenses, budgets, lakeDir, outputDir, database string) {
	for dst, v := range map[*string]string{
		&cfg.Inputs.Expenses: expenses,
		&cfg.Inputs.Budgets:  budgets,
		&cfg.Paths.LakeDir:   lakeDir,
		&cfg.Paths.OutputDir: outputDir,
		&cfg.Paths.Database:  database,
	} {
		if v != "" {
			*dst = v
		}
	}
}

func needsStorage(cfg *config.Config) bool {
	return cfg.Archive.Enabled || gcs.IsURI(cfg.Inputs.Expenses) || gcs.IsURI(cfg.Inputs.Budgets)
}

func printSummary(w io.Writer, result *pipeline.Result) {
	s := result.Summary
	fmt.Fprintf(w, "Batch %s\n", s.BatchID)
	fmt.Fprintf(w, "  processed:  %d expenses, %d budgets\n", s.RawExpenses, s.RawBudgets)
	fmt.Fprintf(w, "  valid:      %d expenses, %d budgets\n", s.CleanExpenses, s.CleanBudgets)
	fmt.Fprintf(w, "  quarantined: %d\n", s.Quarantined)
	fmt.Fprintf(w, "  duplicates: %d\n", s.DuplicatesRemoved)
	fmt.Fprintf(w, "  KPI areas:  %d (%d without budget)\n", s.KpiAreas, s.AreasWithoutBudget)

	files := result.Artifacts.Files()
	if len(files) == 0 {
		return
	}
	fmt.Fprintln(w, "Artifacts:")
	for _, f := range files {
		fmt.Fprintf(w, "  %s\n", f)
	}
	for _, uri := range result.Artifacts.Archived {
		fmt.Fprintf(w, "  %s\n", uri)
	}
}
