package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// BatchIDLayout formats the run start time into a batch id.
const BatchIDLayout = "20060102_150405"

// RunStatus is the lifecycle state of a batch run in the run registry.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// RunContext holds the identifiers shared by every component during one
// pipeline run. It is created once per run and passed explicitly.
type RunContext struct {
	BatchID  string
	IngestTS time.Time

	// Now is the clock used for quarantine and creation timestamps.
	Now func() time.Time
}

// NewRunContext builds a run context anchored at start.
func NewRunContext(start time.Time) RunContext {
	return RunContext{
		BatchID:  start.Format(BatchIDLayout),
		IngestTS: start,
		Now:      time.Now,
	}
}

// Clock returns the current time according to the run's clock.
func (rc RunContext) Clock() time.Time {
	if rc.Now == nil {
		return time.Now()
	}
	return rc.Now()
}

// RunSummary collects the counters of one run. It feeds the report, the run
// registry and the metrics textfile.
type RunSummary struct {
	BatchID string

	ExpensesFile string
	BudgetsFile  string

	RawExpenses   int
	RawBudgets    int
	CleanExpenses int
	CleanBudgets  int

	Quarantined         int
	QuarantineByReason  map[string]int
	DuplicatesRemoved   int
	BudgetDupsCollapsed int

	KpiAreas           int
	AreasWithoutBudget int

	FirstExpenseDate *civil.Date
	LastExpenseDate  *civil.Date

	StartedAt  time.Time
	FinishedAt time.Time
}

// Run is one row of the run registry.
type Run struct {
	BatchID      string
	Status       RunStatus
	StartedAt    time.Time
	FinishedAt   *time.Time
	ErrorMessage string

	RawExpenses       int
	RawBudgets        int
	CleanExpenses     int
	CleanBudgets      int
	Quarantined       int
	DuplicatesRemoved int
}
