// Package cleaning turns raw input rows into the clean (silver) layer:
// schema and range validation, vocabulary normalization, quarantine routing
// and deduplication.
package cleaning

import "github.com/dvloznov/budget-etl/internal/domain"

// Quarantine reasons.
const (
	ReasonMissingField     = "missing required field"
	ReasonTypeConversion   = "type conversion error"
	ReasonNonPositive      = "non-positive amount"
	ReasonUnrecognizedArea = "unrecognized area"
)

// Reasons lists every quarantine reason in pipeline stage order.
var Reasons = []string{
	ReasonMissingField,
	ReasonTypeConversion,
	ReasonNonPositive,
	ReasonUnrecognizedArea,
}

// Rejected is a group of raw rows refused by one rule.
type Rejected struct {
	Reason  string
	Records []domain.RawRecord
}

// ExpenseCandidate is a coerced expense that still remembers the raw row it
// came from, so a later stage can quarantine the original values.
type ExpenseCandidate struct {
	Record domain.ExpenseRecord
	Raw    domain.RawRecord
}

// BudgetCandidate is the budget counterpart of ExpenseCandidate.
type BudgetCandidate struct {
	Record domain.BudgetRecord
	Raw    domain.RawRecord
}

func appendRejected(out []Rejected, reason string, recs []domain.RawRecord) []Rejected {
	if len(recs) == 0 {
		return out
	}
	return append(out, Rejected{Reason: reason, Records: recs})
}
