package pipeline_test

import (
	"context"
	"sync"
	"time"

	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/ingest"
	"github.com/dvloznov/budget-etl/internal/pipeline"
)

// callLog records the order in which collaborators were called.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// MockInputReader serves tables keyed by path.
type MockInputReader struct {
	Tables   map[string][]domain.RawRecord
	ReadFunc func(ctx context.Context, run domain.RunContext, name, path string) (ingest.Table, error)
}

func (m *MockInputReader) Read(ctx context.Context, run domain.RunContext, name, path string) (ingest.Table, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, run, name, path)
	}
	recs, ok := m.Tables[path]
	if !ok {
		return ingest.Table{}, domain.ErrMissingInput
	}
	return ingest.Table{Name: name, SourceFile: path, Records: recs}, nil
}

// MockSnapshotStore records snapshot writes.
type MockSnapshotStore struct {
	Log *callLog

	WriteRawFunc        func(ctx context.Context, batchID, table string, recs []domain.RawRecord) (string, error)
	WriteQuarantineFunc func(ctx context.Context, batchID string, recs []domain.QuarantinedRecord) (string, error)
	WriteGoldFunc       func(ctx context.Context, batchID string, kpis []domain.KpiRow, trend []domain.MonthlyTrendRow) (string, string, error)

	CleanExpenses []domain.ExpenseRecord
	CleanBudgets  []domain.BudgetRecord
	Quarantine    []domain.QuarantinedRecord
}

func (m *MockSnapshotStore) WriteRaw(ctx context.Context, batchID, table string, recs []domain.RawRecord) (string, error) {
	m.Log.add("raw:" + table)
	if m.WriteRawFunc != nil {
		return m.WriteRawFunc(ctx, batchID, table, recs)
	}
	return "raw/" + table + "_batch_" + batchID + ".parquet", nil
}

func (m *MockSnapshotStore) WriteCleanExpenses(ctx context.Context, batchID string, recs []domain.ExpenseRecord) (string, error) {
	m.Log.add("clean:expenses")
	m.CleanExpenses = recs
	return "clean/expenses_clean_batch_" + batchID + ".parquet", nil
}

func (m *MockSnapshotStore) WriteCleanBudgets(ctx context.Context, batchID string, recs []domain.BudgetRecord) (string, error) {
	m.Log.add("clean:budgets")
	m.CleanBudgets = recs
	return "clean/budgets_clean_batch_" + batchID + ".parquet", nil
}

func (m *MockSnapshotStore) WriteQuarantine(ctx context.Context, batchID string, recs []domain.QuarantinedRecord) (string, error) {
	m.Log.add("quarantine")
	m.Quarantine = recs
	if m.WriteQuarantineFunc != nil {
		return m.WriteQuarantineFunc(ctx, batchID, recs)
	}
	if len(recs) == 0 {
		return "", nil
	}
	return "quarantine/quarantine_batch_" + batchID + ".parquet", nil
}

func (m *MockSnapshotStore) WriteGold(ctx context.Context, batchID string, kpis []domain.KpiRow, trend []domain.MonthlyTrendRow) (string, string, error) {
	m.Log.add("gold:lake")
	if m.WriteGoldFunc != nil {
		return m.WriteGoldFunc(ctx, batchID, kpis, trend)
	}
	return "gold/kpi_execution_batch_" + batchID + ".parquet", "gold/monthly_trend_batch_" + batchID + ".parquet", nil
}

// MockGoldStore records the last gold tables it received.
type MockGoldStore struct {
	Log             *callLog
	StoreName       string
	ReplaceGoldFunc func(ctx context.Context, kpis []domain.KpiRow, trend []domain.MonthlyTrendRow) error

	Kpis  []domain.KpiRow
	Trend []domain.MonthlyTrendRow
}

func (m *MockGoldStore) Name() string { return m.StoreName }

func (m *MockGoldStore) ReplaceGold(ctx context.Context, kpis []domain.KpiRow, trend []domain.MonthlyTrendRow) error {
	m.Log.add("gold:" + m.StoreName)
	if m.ReplaceGoldFunc != nil {
		return m.ReplaceGoldFunc(ctx, kpis, trend)
	}
	m.Kpis = kpis
	m.Trend = trend
	return nil
}

// MockRunRegistry keeps runs in memory.
type MockRunRegistry struct {
	Log *callLog

	StartRunFunc func(ctx context.Context, batchID string, startedAt time.Time) error

	Started   []string
	Succeeded []domain.RunSummary
	Failed    map[string]error
}

func (m *MockRunRegistry) StartRun(ctx context.Context, batchID string, startedAt time.Time) error {
	m.Log.add("registry:start")
	if m.StartRunFunc != nil {
		return m.StartRunFunc(ctx, batchID, startedAt)
	}
	m.Started = append(m.Started, batchID)
	return nil
}

func (m *MockRunRegistry) MarkRunSucceeded(ctx context.Context, summary domain.RunSummary) error {
	m.Log.add("registry:succeeded")
	m.Succeeded = append(m.Succeeded, summary)
	return nil
}

func (m *MockRunRegistry) MarkRunFailed(ctx context.Context, batchID string, runErr error) {
	m.Log.add("registry:failed")
	if m.Failed == nil {
		m.Failed = make(map[string]error)
	}
	m.Failed[batchID] = runErr
}

// MockReportSink keeps the last report.
type MockReportSink struct {
	Log       *callLog
	WriteFunc func(ctx context.Context, content string) (string, error)
	Content   string
}

func (m *MockReportSink) Write(ctx context.Context, content string) (string, error) {
	m.Log.add("report")
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, content)
	}
	m.Content = content
	return "out/report.md", nil
}

// MockArchiver records archived files.
type MockArchiver struct {
	Log   *callLog
	Files []string
}

func (m *MockArchiver) Archive(ctx context.Context, batchID string, files []string) ([]string, error) {
	m.Log.add("archive")
	m.Files = files
	uris := make([]string, len(files))
	for i, f := range files {
		uris[i] = "gs://archive/batches/" + batchID + "/" + f
	}
	return uris, nil
}

// MockRecorder counts metric calls.
type MockRecorder struct {
	Steps    []string
	Statuses []domain.RunStatus
}

func (m *MockRecorder) ObserveStep(step string, d time.Duration) {
	m.Steps = append(m.Steps, step)
}

func (m *MockRecorder) RecordRun(summary domain.RunSummary, status domain.RunStatus) {
	m.Statuses = append(m.Statuses, status)
}

var (
	_ pipeline.InputReader   = (*MockInputReader)(nil)
	_ pipeline.SnapshotStore = (*MockSnapshotStore)(nil)
	_ pipeline.GoldStore     = (*MockGoldStore)(nil)
	_ pipeline.RunRegistry   = (*MockRunRegistry)(nil)
	_ pipeline.ReportSink    = (*MockReportSink)(nil)
	_ pipeline.Archiver      = (*MockArchiver)(nil)
	_ pipeline.Recorder      = (*MockRecorder)(nil)
)
