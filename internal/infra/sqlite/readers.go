package sqlite

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-etl/internal/domain"
)

// ExecutionDetail is one row of v_execution_detail.
type ExecutionDetail struct {
	domain.KpiRow
	Status          string
	RemainingBudget decimal.NullDecimal
}

// ExecutionDetail reads the execution detail view, highest execution first
// and areas without a percentage last.
func (s *Store) ExecutionDetail(ctx context.Context) ([]ExecutionDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT area, annual_budget, accumulated_spend, execution_pct, execution_ratio,
		       status, remaining_budget, batch_id, created_at
		FROM v_execution_detail`)
	if err != nil {
		return nil, fmt.Errorf("ExecutionDetail: query: %w", err)
	}
	defer rows.Close()

	var out []ExecutionDetail
	for rows.Next() {
		var (
			d         ExecutionDetail
			createdAt string
		)
		if err := rows.Scan(
			&d.Area, &d.AnnualBudget, &d.AccumulatedSpend, &d.ExecutionPct, &d.ExecutionRatio,
			&d.Status, &d.RemainingBudget, &d.BatchID, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("ExecutionDetail: scan: %w", err)
		}
		d.CreatedAt = parseTime(createdAt)
		roundDetail(&d)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ExecutionDetail: %w", err)
	}
	return out, nil
}

// Kpis reads kpi_execution ordered by area.
func (s *Store) Kpis(ctx context.Context) ([]domain.KpiRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT area, annual_budget, accumulated_spend, execution_pct, execution_ratio, batch_id, created_at
		FROM kpi_execution
		ORDER BY area`)
	if err != nil {
		return nil, fmt.Errorf("Kpis: query: %w", err)
	}
	defer rows.Close()

	var out []domain.KpiRow
	for rows.Next() {
		var (
			k         domain.KpiRow
			createdAt string
		)
		if err := rows.Scan(&k.Area, &k.AnnualBudget, &k.AccumulatedSpend, &k.ExecutionPct, &k.ExecutionRatio, &k.BatchID, &createdAt); err != nil {
			return nil, fmt.Errorf("Kpis: scan: %w", err)
		}
		k.CreatedAt = parseTime(createdAt)
		roundKpi(&k)
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Kpis: %w", err)
	}
	return out, nil
}

// Trend reads monthly_trend ordered by month and area. A non-empty area
// restricts the result to that area.
func (s *Store) Trend(ctx context.Context, area string) ([]domain.MonthlyTrendRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT month, area, monthly_spend
		FROM monthly_trend
		WHERE ? = '' OR area = ?
		ORDER BY month, area`, area, area)
	if err != nil {
		return nil, fmt.Errorf("Trend: query: %w", err)
	}
	defer rows.Close()

	var out []domain.MonthlyTrendRow
	for rows.Next() {
		var t domain.MonthlyTrendRow
		if err := rows.Scan(&t.Month, &t.Area, &t.MonthlySpend); err != nil {
			return nil, fmt.Errorf("Trend: scan: %w", err)
		}
		t.MonthlySpend = t.MonthlySpend.Round(2)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Trend: %w", err)
	}
	return out, nil
}

// NUMERIC columns come back as floating point; restore the stored scales.
func roundKpi(k *domain.KpiRow) {
	k.AccumulatedSpend = k.AccumulatedSpend.Round(2)
	roundNull(&k.AnnualBudget, 2)
	roundNull(&k.ExecutionPct, 2)
	roundNull(&k.ExecutionRatio, 4)
}

func roundDetail(d *ExecutionDetail) {
	roundKpi(&d.KpiRow)
	roundNull(&d.RemainingBudget, 2)
}

func roundNull(n *decimal.NullDecimal, places int32) {
	if n.Valid {
		n.Decimal = n.Decimal.Round(places)
	}
}
