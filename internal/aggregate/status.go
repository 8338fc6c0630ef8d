package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-etl/internal/domain"
)

// Execution status labels.
const (
	StatusOverBudget     = "OVER BUDGET"
	StatusAtRisk         = "AT RISK"
	StatusNormal         = "NORMAL"
	StatusLowUtilization = "LOW UTILIZATION"
	StatusNoBudget       = "NO BUDGET"
)

var (
	atRiskFloor = decimal.NewFromInt(90)
	normalFloor = decimal.NewFromInt(70)
)

// Classify maps an execution percentage to its status label.
func Classify(pct decimal.NullDecimal) string {
	if !pct.Valid {
		return StatusNoBudget
	}
	switch p := pct.Decimal; {
	case p.GreaterThan(hundred):
		return StatusOverBudget
	case p.GreaterThanOrEqual(atRiskFloor):
		return StatusAtRisk
	case p.GreaterThanOrEqual(normalFloor):
		return StatusNormal
	default:
		return StatusLowUtilization
	}
}

// Remaining returns annual budget minus accumulated spend, null without a budget.
func Remaining(k domain.KpiRow) decimal.NullDecimal {
	if !k.AnnualBudget.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(k.AnnualBudget.Decimal.Sub(k.AccumulatedSpend))
}

// SortByExecution returns a copy of rows ordered by execution percentage,
// highest first, with null percentages last. Ties keep area order.
func SortByExecution(rows []domain.KpiRow) []domain.KpiRow {
	out := append([]domain.KpiRow(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ExecutionPct, out[j].ExecutionPct
		if a.Valid != b.Valid {
			return a.Valid
		}
		if !a.Valid || a.Decimal.Equal(b.Decimal) {
			return out[i].Area < out[j].Area
		}
		return a.Decimal.GreaterThan(b.Decimal)
	})
	return out
}

// AtRisk returns the rows with execution of 90% or more, highest first.
func AtRisk(rows []domain.KpiRow) []domain.KpiRow {
	var out []domain.KpiRow
	for _, r := range SortByExecution(rows) {
		if r.ExecutionPct.Valid && r.ExecutionPct.Decimal.GreaterThanOrEqual(atRiskFloor) {
			out = append(out, r)
		}
	}
	return out
}

// MonthTotal is the spend of one month across all areas.
type MonthTotal struct {
	Month string
	Spend decimal.Decimal
}

// TopMonths returns the n months with the highest total spend, highest
// first. Equal totals are ordered by month.
func TopMonths(trend []domain.MonthlyTrendRow, n int) []MonthTotal {
	totals := make(map[string]decimal.Decimal)
	for _, r := range trend {
		totals[r.Month] = totals[r.Month].Add(r.MonthlySpend)
	}

	out := make([]MonthTotal, 0, len(totals))
	for m, s := range totals {
		out = append(out, MonthTotal{Month: m, Spend: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Spend.Equal(out[j].Spend) {
			return out[i].Spend.GreaterThan(out[j].Spend)
		}
		return out[i].Month < out[j].Month
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
