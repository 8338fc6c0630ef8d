package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Table names used for quarantine tagging, snapshots and logging.
const (
	TableExpenses = "expenses"
	TableBudgets  = "budgets"
)

// Canonical field names of the two input tables.
const (
	FieldDate         = "date"
	FieldArea         = "area"
	FieldCategory     = "category"
	FieldAmount       = "amount"
	FieldAnnualBudget = "annual_budget"
	FieldYear         = "year"
)

// Trace carries the lineage metadata stamped on every ingested row.
type Trace struct {
	IngestTS   time.Time
	SourceFile string
	BatchID    string
	EventID    uuid.UUID

	// Row is the 1-based data row position in the source table. It breaks
	// ties between records that share an ingest timestamp.
	Row int
}

// RawRecord is one input row before any coercion. A nil value means the
// cell was null or the column was absent.
type RawRecord struct {
	Fields map[string]*string
	Trace
}

// Value returns the raw value of a field and whether it is non-null.
func (r RawRecord) Value(field string) (string, bool) {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// ExpenseRecord is a validated, normalized expense row (silver layer).
type ExpenseRecord struct {
	Date     civil.Date
	Area     string
	Category string
	Amount   decimal.Decimal // DECIMAL(18,2)
	Trace
}

// BudgetRecord is a validated, normalized budget row (silver layer).
type BudgetRecord struct {
	Area         string
	AnnualBudget decimal.Decimal // DECIMAL(18,2)
	Year         *int            // nil when the input had no year
	Trace
}

// QuarantinedRecord is a rejected input row kept for manual review.
// It is never re-injected into the pipeline.
type QuarantinedRecord struct {
	Table        string
	Fields       map[string]*string
	Reason       string
	QuarantineTS time.Time
	Trace
}

// KpiRow is the budget execution KPI for one area (gold layer).
// The budget-derived fields are null when the area has no budget.
type KpiRow struct {
	Area             string
	AnnualBudget     decimal.NullDecimal
	AccumulatedSpend decimal.Decimal
	ExecutionPct     decimal.NullDecimal
	ExecutionRatio   decimal.NullDecimal
	BatchID          string
	CreatedAt        time.Time
}

// MonthlyTrendRow is the spend of one area in one calendar month (gold layer).
type MonthlyTrendRow struct {
	Month        string // YYYY-MM
	Area         string
	MonthlySpend decimal.Decimal
}
