package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-etl/internal/config"
	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/gcsuploader"
	infraBQ "github.com/dvloznov/budget-etl/internal/infra/bigquery"
	"github.com/dvloznov/budget-etl/internal/infra/parquet"
	"github.com/dvloznov/budget-etl/internal/infra/sqlite"
	"github.com/dvloznov/budget-etl/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithOptions(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Out: os.Stderr})

	switch os.Args[1] {
	case "runs":
		runRuns(cfg, log)
	case "inspect":
		runInspect(cfg, log)
	case "trend":
		runTrend(cfg, log)
	case "archive":
		runArchive(cfg, log)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Budget ETL CLI")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  cli <command> [options]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  runs      List batch runs from the run registry")
	fmt.Fprintln(w, "  inspect   Show the budget execution detail, or one batch with -batch")
	fmt.Fprintln(w, "  trend     Show the monthly spend trend, optionally for one -area")
	fmt.Fprintln(w, "  archive   Upload the artifacts of a past batch to GCS")
	fmt.Fprintln(w, "  help      Show this help message")
	fmt.Fprintln(w, "\nConfiguration is read from BUDGET_CONFIG and BUDGET_* variables.")
	fmt.Fprintln(w, "Run 'cli <command> -h' for more information on a command.")
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) *sqlite.Store {
	store, err := sqlite.Open(ctx, cfg.Paths.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	if _, err := store.Migrate(ctx, "cli"); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	return store
}

func runRuns(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Maximum number of runs to list (0 for all)")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	store := openStore(ctx, cfg, log)
	defer store.Close()

	runs, err := store.ListRuns(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}
	printRuns(os.Stdout, runs)
}

func runInspect(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	batchID := fs.String("batch", "", "Batch ID to inspect (default: current gold tables)")
	warehouse := fs.Bool("warehouse", false, "Read the KPI table from the BigQuery mirror")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	if *batchID != "" {
		store := openStore(ctx, cfg, log)
		defer store.Close()

		run, err := store.GetRun(ctx, *batchID)
		if err != nil {
			log.Fatal().Err(err).Str("batch_id", *batchID).Msg("Failed to get run")
		}
		printRun(os.Stdout, run, snapshotCounts(parquet.NewStore(cfg.Paths.LakeDir), *batchID, log))
		return
	}

	if *warehouse {
		if !cfg.Warehouse.Enabled {
			log.Fatal().Msg("Warehouse is not enabled (set BUDGET_WAREHOUSE_ENABLED)")
		}
		mirror, err := infraBQ.NewMirror(ctx, cfg.Warehouse.ProjectID, cfg.Warehouse.Dataset, cfg.Warehouse.Location)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer mirror.Close()

		kpis, err := mirror.Kpis(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read warehouse KPIs")
		}
		printKpis(os.Stdout, kpis)
		return
	}

	store := openStore(ctx, cfg, log)
	defer store.Close()

	details, err := store.ExecutionDetail(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read execution detail")
	}
	printExecutionDetail(os.Stdout, details)
}

func runTrend(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("trend", flag.ExitOnError)
	area := fs.String("area", "", "Only show this area")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	store := openStore(ctx, cfg, log)
	defer store.Close()

	trend, err := store.Trend(ctx, *area)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read trend")
	}
	printTrend(os.Stdout, trend)
}

func runArchive(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	batchID := fs.String("batch", "", "Batch ID whose artifacts to upload")
	bucket := fs.String("bucket", cfg.Archive.Bucket, "GCS bucket (default from config)")
	fs.Parse(os.Args[2:])

	if *batchID == "" || *bucket == "" {
		log.Fatal().Msg("Usage: cli archive -batch ID [-bucket NAME]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	files := parquet.NewStore(cfg.Paths.LakeDir).BatchFiles(*batchID)
	if len(files) == 0 {
		log.Fatal().Str("batch_id", *batchID).Msg("No snapshots found for batch")
	}

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer storage.Close()

	uris, err := gcsuploader.NewArchiver(storage, *bucket, cfg.Archive.Prefix).Archive(ctx, *batchID, files)
	if err != nil {
		log.Fatal().Err(err).Msg("Archive failed")
	}
	for _, uri := range uris {
		fmt.Println(uri)
	}
}

// snapshotCount is the row count of one snapshot file of a batch.
type snapshotCount struct {
	Path string
	Rows int64
}

func snapshotCounts(lake *parquet.Store, batchID string, log zerolog.Logger) []snapshotCount {
	var out []snapshotCount
	for _, f := range lake.BatchFiles(batchID) {
		n, err := parquet.CountRows(f)
		if err != nil {
			log.Warn().Err(err).Str("path", f).Msg("Failed to read snapshot")
			continue
		}
		out = append(out, snapshotCount{Path: f, Rows: n})
	}
	return out
}

func printRuns(w io.Writer, runs []domain.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH\tSTATUS\tSTARTED\tEXPENSES\tVALID\tQUARANTINED\tDUPLICATES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.BatchID, r.Status, r.StartedAt.Format(time.RFC3339),
			r.RawExpenses, r.CleanExpenses, r.Quarantined, r.DuplicatesRemoved)
	}
	tw.Flush()
}

func printRun(w io.Writer, r *domain.Run, snapshots []snapshotCount) {
	fmt.Fprintln(w, "=== Batch Run ===")
	fmt.Fprintf(w, "Batch:       %s\n", r.BatchID)
	fmt.Fprintf(w, "Status:      %s\n", r.Status)
	fmt.Fprintf(w, "Started:     %s\n", r.StartedAt.Format(time.RFC3339))
	if r.FinishedAt != nil {
		fmt.Fprintf(w, "Finished:    %s\n", r.FinishedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Expenses:    %d read, %d valid\n", r.RawExpenses, r.CleanExpenses)
	fmt.Fprintf(w, "Budgets:     %d read, %d valid\n", r.RawBudgets, r.CleanBudgets)
	fmt.Fprintf(w, "Quarantined: %d\n", r.Quarantined)
	fmt.Fprintf(w, "Duplicates:  %d\n", r.DuplicatesRemoved)
	if r.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:       %s\n", r.ErrorMessage)
	}

	fmt.Fprintf(w, "\n=== Snapshots (%d) ===\n", len(snapshots))
	for _, s := range snapshots {
		fmt.Fprintf(w, "%8d  %s\n", s.Rows, s.Path)
	}
}

func printExecutionDetail(w io.Writer, details []sqlite.ExecutionDetail) {
	if len(details) == 0 {
		fmt.Fprintln(w, "No KPI rows published yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "AREA\tBUDGET\tSPEND\tEXEC %\tREMAINING\tSTATUS\t")
	for _, d := range details {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			d.Area, nullString(d.AnnualBudget, 2), d.AccumulatedSpend.StringFixed(2),
			nullString(d.ExecutionPct, 2), nullString(d.RemainingBudget, 2), d.Status)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nBatch %s\n", details[0].BatchID)
}

func printKpis(w io.Writer, kpis []domain.KpiRow) {
	if len(kpis) == 0 {
		fmt.Fprintln(w, "No KPI rows published yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "AREA\tBUDGET\tSPEND\tEXEC %\tRATIO\tBATCH\t")
	for _, k := range kpis {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			k.Area, nullString(k.AnnualBudget, 2), k.AccumulatedSpend.StringFixed(2),
			nullString(k.ExecutionPct, 2), nullString(k.ExecutionRatio, 4), k.BatchID)
	}
	tw.Flush()
}

func printTrend(w io.Writer, trend []domain.MonthlyTrendRow) {
	if len(trend) == 0 {
		fmt.Fprintln(w, "No trend rows published yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MONTH\tAREA\tSPEND\t")
	for _, t := range trend {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", t.Month, t.Area, t.MonthlySpend.StringFixed(2))
	}
	tw.Flush()
}

func nullString(d decimal.NullDecimal, places int32) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(places)
}
