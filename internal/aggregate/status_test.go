package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-etl/internal/domain"
)

func pct(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		pct  decimal.NullDecimal
		want string
	}{
		{pct("130.5"), StatusOverBudget},
		{pct("100.01"), StatusOverBudget},
		{pct("100"), StatusAtRisk},
		{pct("90"), StatusAtRisk},
		{pct("89.99"), StatusNormal},
		{pct("70"), StatusNormal},
		{pct("69.99"), StatusLowUtilization},
		{pct("0"), StatusLowUtilization},
		{decimal.NullDecimal{}, StatusNoBudget},
	}
	for _, tt := range tests {
		name := "null"
		if tt.pct.Valid {
			name = tt.pct.Decimal.String()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.pct))
		})
	}
}

func TestRemaining(t *testing.T) {
	k := domain.KpiRow{
		AnnualBudget:     pct("60000"),
		AccumulatedSpend: decimal.RequireFromString("65000.50"),
	}
	r := Remaining(k)
	require.True(t, r.Valid)
	assert.Equal(t, "-5000.5", r.Decimal.String())

	assert.False(t, Remaining(domain.KpiRow{AccumulatedSpend: decimal.NewFromInt(1)}).Valid)
}

func TestSortByExecution(t *testing.T) {
	rows := []domain.KpiRow{
		{Area: "Marketing"},
		{Area: "Operaciones", ExecutionPct: pct("95")},
		{Area: "Rrhh", ExecutionPct: pct("40")},
		{Area: "Ti", ExecutionPct: pct("120")},
		{Area: "Ventas", ExecutionPct: pct("95")},
		{Area: "Compras"},
	}

	sorted := SortByExecution(rows)

	got := make([]string, len(sorted))
	for i, r := range sorted {
		got[i] = r.Area
	}
	assert.Equal(t, []string{"Ti", "Operaciones", "Ventas", "Rrhh", "Compras", "Marketing"}, got)
	assert.Equal(t, "Marketing", rows[0].Area, "input is not reordered")
}

func TestAtRisk(t *testing.T) {
	rows := []domain.KpiRow{
		{Area: "Marketing", ExecutionPct: pct("89.99")},
		{Area: "Ti", ExecutionPct: pct("90")},
		{Area: "Ventas", ExecutionPct: pct("101")},
		{Area: "Rrhh"},
	}

	risk := AtRisk(rows)
	require.Len(t, risk, 2)
	assert.Equal(t, "Ventas", risk[0].Area)
	assert.Equal(t, "Ti", risk[1].Area)
}

func TestTopMonths(t *testing.T) {
	d := decimal.RequireFromString
	trend := []domain.MonthlyTrendRow{
		{Month: "2024-01", Area: "Ventas", MonthlySpend: d("100")},
		{Month: "2024-01", Area: "Ti", MonthlySpend: d("50")},
		{Month: "2024-02", Area: "Ventas", MonthlySpend: d("300")},
		{Month: "2024-03", Area: "Ventas", MonthlySpend: d("150")},
		{Month: "2024-04", Area: "Ventas", MonthlySpend: d("10")},
		{Month: "2024-05", Area: "Ventas", MonthlySpend: d("20")},
		{Month: "2024-06", Area: "Ventas", MonthlySpend: d("5")},
	}

	top := TopMonths(trend, 5)
	require.Len(t, top, 5)
	months := make([]string, len(top))
	for i, m := range top {
		months[i] = m.Month
	}
	assert.Equal(t, []string{"2024-02", "2024-01", "2024-03", "2024-05", "2024-04"}, months)
	assert.Equal(t, "150", top[1].Spend.String())

	assert.Len(t, TopMonths(trend[:2], 5), 1)
	assert.Empty(t, TopMonths(nil, 5))
}
