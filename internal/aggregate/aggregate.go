// Package aggregate computes the gold layer: the budget execution KPI per
// area and the monthly spend trend.
package aggregate

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-etl/internal/domain"
)

// Rounding of the two KPI ratios.
const (
	PctScale   = 2
	RatioScale = 4
)

var hundred = decimal.NewFromInt(100)

// Gold holds the aggregate tables of one run.
type Gold struct {
	Kpis  []domain.KpiRow
	Trend []domain.MonthlyTrendRow

	// AreasWithoutBudget counts KPI rows whose budget fields are null.
	AreasWithoutBudget int
}

// Compute derives the KPI and trend tables from clean expenses and budgets.
// It is a pure function of its arguments. KPI rows carry the run's batch id
// and are stamped with the run's ingest timestamp. Budgets are expected to
// hold one row per area.
func Compute(run domain.RunContext, expenses []domain.ExpenseRecord, budgets []domain.BudgetRecord) Gold {
	spend := make(map[string]decimal.Decimal)
	monthly := make(map[monthArea]decimal.Decimal)
	for _, e := range expenses {
		spend[e.Area] = spend[e.Area].Add(e.Amount)
		k := monthArea{Month: MonthKey(e.Date), Area: e.Area}
		monthly[k] = monthly[k].Add(e.Amount)
	}

	budgetByArea := make(map[string]decimal.Decimal, len(budgets))
	for _, b := range budgets {
		budgetByArea[b.Area] = b.AnnualBudget
	}

	var gold Gold
	for _, area := range sortedKeys(spend) {
		row := domain.KpiRow{
			Area:             area,
			AccumulatedSpend: spend[area],
			BatchID:          run.BatchID,
			CreatedAt:        run.IngestTS,
		}
		if budget, ok := budgetByArea[area]; ok {
			row.AnnualBudget = decimal.NewNullDecimal(budget)
			if !budget.IsZero() {
				row.ExecutionPct = decimal.NewNullDecimal(row.AccumulatedSpend.Mul(hundred).DivRound(budget, PctScale))
				row.ExecutionRatio = decimal.NewNullDecimal(row.AccumulatedSpend.DivRound(budget, RatioScale))
			}
		}
		if !row.ExecutionPct.Valid {
			gold.AreasWithoutBudget++
		}
		gold.Kpis = append(gold.Kpis, row)
	}

	keys := make([]monthArea, 0, len(monthly))
	for k := range monthly {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Month != keys[j].Month {
			return keys[i].Month < keys[j].Month
		}
		return keys[i].Area < keys[j].Area
	})
	for _, k := range keys {
		gold.Trend = append(gold.Trend, domain.MonthlyTrendRow{
			Month:        k.Month,
			Area:         k.Area,
			MonthlySpend: monthly[k],
		})
	}
	return gold
}

type monthArea struct {
	Month string
	Area  string
}

// MonthKey formats a date as YYYY-MM.
func MonthKey(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
