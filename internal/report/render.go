// Package report renders the run report as Markdown and writes it to disk.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/budget-etl/internal/aggregate"
	"github.com/dvloznov/budget-etl/internal/cleaning"
	"github.com/dvloznov/budget-etl/internal/domain"
)

// TopMonthsShown is the number of months listed in the spend ranking.
const TopMonthsShown = 5

// Input is everything the report is rendered from.
type Input struct {
	GeneratedAt time.Time
	Summary     domain.RunSummary
	Kpis        []domain.KpiRow
	Trend       []domain.MonthlyTrendRow
}

// Render builds the Markdown report. It has no side effects.
func Render(in Input) string {
	var b strings.Builder
	s := in.Summary

	b.WriteString("# Budget Execution Report\n\n")
	fmt.Fprintf(&b, "- **Generated:** %s\n", in.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Batch:** `%s`\n", s.BatchID)
	fmt.Fprintf(&b, "- **Period analysed:** %s to %s\n\n", date(s.FirstExpenseDate), date(s.LastExpenseDate))

	writeSummary(&b, in)
	writeKpiTable(&b, in.Kpis)
	writeTopMonths(&b, in.Trend)
	writeContext(&b, in)
	writeDataQuality(&b, s)
	writeRisk(&b, in.Kpis)
	writeRecommendations(&b, in)
	writeDefinitions(&b)

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "_Report generated automatically by the budget ETL pipeline for batch `%s`._\n", s.BatchID)
	return b.String()
}

func writeSummary(b *strings.Builder, in Input) {
	s := in.Summary
	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(b, "- Expense records processed: **%d**\n", s.RawExpenses)
	fmt.Fprintf(b, "- Budget records processed: **%d**\n", s.RawBudgets)
	fmt.Fprintf(b, "- Valid expenses after cleaning: **%d**\n", s.CleanExpenses)
	fmt.Fprintf(b, "- Valid budgets after cleaning: **%d**\n", s.CleanBudgets)
	fmt.Fprintf(b, "- Records quarantined: **%d**\n", s.Quarantined)
	fmt.Fprintf(b, "- Duplicates removed: **%d**\n", s.DuplicatesRemoved)
	fmt.Fprintf(b, "- Areas analysed: **%d** (%d without a usable budget)\n\n", len(in.Kpis), s.AreasWithoutBudget)
}

func writeKpiTable(b *strings.Builder, kpis []domain.KpiRow) {
	b.WriteString("## Budget Execution by Area\n\n")
	b.WriteString("Execution is accumulated spend divided by annual budget, over every valid expense of the batch.\n\n")

	if len(kpis) == 0 {
		b.WriteString("No valid expenses were available to compute the KPI.\n\n")
		return
	}

	b.WriteString("| Area | Annual budget | Accumulated spend | Execution | Ratio | Remaining | Status |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---|\n")
	for _, k := range aggregate.SortByExecution(kpis) {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			k.Area,
			nullMoney(k.AnnualBudget),
			money(k.AccumulatedSpend),
			percent(k.ExecutionPct),
			ratio(k.ExecutionRatio),
			nullMoney(aggregate.Remaining(k)),
			aggregate.Classify(k.ExecutionPct),
		)
	}
	b.WriteString("\n")
}

func writeTopMonths(b *strings.Builder, trend []domain.MonthlyTrendRow) {
	fmt.Fprintf(b, "## Top %d Months by Spend\n\n", TopMonthsShown)

	top := aggregate.TopMonths(trend, TopMonthsShown)
	if len(top) == 0 {
		b.WriteString("No monthly spend recorded.\n\n")
		return
	}

	b.WriteString("| Month | Total spend |\n")
	b.WriteString("|---|---:|\n")
	for _, m := range top {
		fmt.Fprintf(b, "| %s | %s |\n", m.Month, money(m.Spend))
	}
	b.WriteString("\n")
}

func writeContext(b *strings.Builder, in Input) {
	s := in.Summary
	b.WriteString("## Analysis Context\n\n")
	fmt.Fprintf(b, "- Expense source: `%s` (%d rows)\n", s.ExpensesFile, s.RawExpenses)
	fmt.Fprintf(b, "- Budget source: `%s` (%d rows)\n", s.BudgetsFile, s.RawBudgets)
	fmt.Fprintf(b, "- Expense dates: %s to %s\n", date(s.FirstExpenseDate), date(s.LastExpenseDate))
	fmt.Fprintf(b, "- Processed at: %s\n\n", in.GeneratedAt.Format(time.RFC3339))
}

func writeDataQuality(b *strings.Builder, s domain.RunSummary) {
	b.WriteString("## Data Quality\n\n")

	if s.Quarantined == 0 {
		b.WriteString("- No records were quarantined.\n")
	} else {
		fmt.Fprintf(b, "- %d records were quarantined for manual review:\n", s.Quarantined)
		for _, reason := range cleaning.Reasons {
			if n := s.QuarantineByReason[reason]; n > 0 {
				fmt.Fprintf(b, "  - %s: %d\n", reason, n)
			}
		}
	}

	fmt.Fprintf(b, "- Deduplication on (date, area, category) keeps the most recent ingest, ties going to the later input row: %d duplicates removed.\n", s.DuplicatesRemoved)
	if s.BudgetDupsCollapsed > 0 {
		fmt.Fprintf(b, "- %d repeated budget rows were collapsed, keeping the latest year per area.\n", s.BudgetDupsCollapsed)
	}
	b.WriteString("- Amounts are stored as DECIMAL(18,2), rounded half away from zero.\n\n")
}

func writeRisk(b *strings.Builder, kpis []domain.KpiRow) {
	b.WriteString("## Areas at Risk\n\n")

	risk := aggregate.AtRisk(kpis)
	if len(risk) == 0 {
		b.WriteString("No areas are at risk: every area with a budget is below 90% execution.\n\n")
		return
	}

	for _, k := range risk {
		pct := percent(k.ExecutionPct)
		if aggregate.Classify(k.ExecutionPct) == aggregate.StatusOverBudget {
			fmt.Fprintf(b, "- **%s**: %s executed. %s, requires immediate action.\n", k.Area, pct, aggregate.StatusOverBudget)
		} else {
			fmt.Fprintf(b, "- **%s**: %s executed. %s, monitor closely.\n", k.Area, pct, aggregate.StatusAtRisk)
		}
	}
	b.WriteString("\n")
}

func writeRecommendations(b *strings.Builder, in Input) {
	b.WriteString("## Recommendations\n\n")

	n := 1
	item := func(format string, args ...interface{}) {
		fmt.Fprintf(b, "%d. "+format+"\n", append([]interface{}{n}, args...)...)
		n++
	}

	if len(aggregate.AtRisk(in.Kpis)) > 0 {
		item("Review spending in areas above 90%% execution before committing new expenses.")
	}
	if in.Summary.AreasWithoutBudget > 0 {
		item("Assign an annual budget to the %d areas that have spend but no usable budget.", in.Summary.AreasWithoutBudget)
	}
	if in.Summary.Quarantined > 0 {
		item("Correct the %d quarantined records at the source and reload them in a later batch.", in.Summary.Quarantined)
	}
	item("Set alerts for areas crossing 90%% execution.")
	item("Validate area and category labels with their owners to reduce unrecognized values.")
	b.WriteString("\n")
}

func writeDefinitions(b *strings.Builder) {
	b.WriteString("## KPI Definitions\n\n")
	b.WriteString("- **Execution %**: accumulated spend / annual budget x 100, rounded to 2 decimals.\n")
	b.WriteString("- **Ratio**: accumulated spend / annual budget, rounded to 4 decimals.\n")
	b.WriteString("- **Remaining**: annual budget minus accumulated spend.\n")
	fmt.Fprintf(b, "- **Status**: %s above 100%%, %s from 90%% to 100%%, %s from 70%% to 90%%, %s below 70%%, %s without a budget.\n\n",
		aggregate.StatusOverBudget, aggregate.StatusAtRisk, aggregate.StatusNormal, aggregate.StatusLowUtilization, aggregate.StatusNoBudget)
}
