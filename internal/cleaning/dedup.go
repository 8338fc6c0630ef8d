package cleaning

import (
	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-etl/internal/domain"
)

type naturalKey struct {
	date     civil.Date
	area     string
	category string
}

// newer reports whether a supersedes b: later ingest timestamp first, then
// the row that appears later in the input.
func newer(a, b domain.Trace) bool {
	if !a.IngestTS.Equal(b.IngestTS) {
		return a.IngestTS.After(b.IngestTS)
	}
	return a.Row > b.Row
}

// DedupExpenses keeps one record per (date, area, category), the most recent
// by ingest timestamp with ties going to the later input row. Survivors keep
// their input order. It returns the survivors and the number removed.
func DedupExpenses(recs []domain.ExpenseRecord) ([]domain.ExpenseRecord, int) {
	winner := make(map[naturalKey]int, len(recs))
	for i, r := range recs {
		k := naturalKey{r.Date, r.Area, r.Category}
		if j, ok := winner[k]; !ok || newer(r.Trace, recs[j].Trace) {
			winner[k] = i
		}
	}

	kept := make([]domain.ExpenseRecord, 0, len(winner))
	for i, r := range recs {
		if winner[naturalKey{r.Date, r.Area, r.Category}] == i {
			kept = append(kept, r)
		}
	}
	return kept, len(recs) - len(kept)
}

// CollapseBudgets keeps one budget per area: the greatest year, then the
// later input row. Budgets without a year rank below any dated one.
func CollapseBudgets(recs []domain.BudgetRecord) ([]domain.BudgetRecord, int) {
	winner := make(map[string]int, len(recs))
	for i, r := range recs {
		j, ok := winner[r.Area]
		if !ok || budgetSupersedes(r, recs[j]) {
			winner[r.Area] = i
		}
	}

	kept := make([]domain.BudgetRecord, 0, len(winner))
	for i, r := range recs {
		if winner[r.Area] == i {
			kept = append(kept, r)
		}
	}
	return kept, len(recs) - len(kept)
}

func budgetSupersedes(a, b domain.BudgetRecord) bool {
	ay, by := yearOf(a), yearOf(b)
	if ay != by {
		return ay > by
	}
	return a.Row > b.Row
}

func yearOf(b domain.BudgetRecord) int {
	if b.Year == nil {
		return 0
	}
	return *b.Year
}
