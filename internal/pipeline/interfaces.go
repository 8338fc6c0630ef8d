package pipeline

import (
	"context"
	"time"

	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/ingest"
)

// InputReader loads one input table.
type InputReader interface {
	Read(ctx context.Context, run domain.RunContext, name, path string) (ingest.Table, error)
}

// SnapshotStore writes the append-only batch snapshots of the lake and
// returns the path of each file written.
type SnapshotStore interface {
	WriteRaw(ctx context.Context, batchID, table string, recs []domain.RawRecord) (string, error)
	WriteCleanExpenses(ctx context.Context, batchID string, recs []domain.ExpenseRecord) (string, error)
	WriteCleanBudgets(ctx context.Context, batchID string, recs []domain.BudgetRecord) (string, error)

	// WriteQuarantine returns "" when there is nothing to write.
	WriteQuarantine(ctx context.Context, batchID string, recs []domain.QuarantinedRecord) (string, error)

	// WriteGold returns the KPI and trend snapshot paths.
	WriteGold(ctx context.Context, batchID string, kpis []domain.KpiRow, trend []domain.MonthlyTrendRow) (string, string, error)
}

// GoldStore replaces the full contents of the KPI and trend tables.
type GoldStore interface {
	Name() string
	ReplaceGold(ctx context.Context, kpis []domain.KpiRow, trend []domain.MonthlyTrendRow) error
}

// RunRegistry tracks the lifecycle of each batch run.
type RunRegistry interface {
	StartRun(ctx context.Context, batchID string, startedAt time.Time) error
	MarkRunSucceeded(ctx context.Context, summary domain.RunSummary) error

	// MarkRunFailed is best effort; failures are logged by the implementation.
	MarkRunFailed(ctx context.Context, batchID string, runErr error)
}

// ReportSink stores the rendered report and returns where it went.
type ReportSink interface {
	Write(ctx context.Context, content string) (string, error)
}

// Archiver uploads the artifacts of a batch and returns their locations.
type Archiver interface {
	Archive(ctx context.Context, batchID string, files []string) ([]string, error)
}

// Recorder receives step timings and the final counters of a run.
type Recorder interface {
	ObserveStep(step string, d time.Duration)
	RecordRun(summary domain.RunSummary, status domain.RunStatus)
}
