package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/logger"
)

const stagingSuffix = "_staging"

// Name identifies the store in logs and errors.
func (s *Store) Name() string {
	return "sqlite"
}

// ReplaceGold replaces the contents of kpi_execution and monthly_trend.
// Rows are first written to staging tables; a single transaction then
// swaps both live tables so readers never observe a partial refresh.
func (s *Store) ReplaceGold(ctx context.Context, kpis []domain.KpiRow, trend []domain.MonthlyTrendRow) error {
	log := logger.FromContext(ctx)

	if err := s.stage(ctx, kpis, trend); err != nil {
		s.dropStaging(ctx)
		return domain.NewPersistenceError(s.Name(), fmt.Errorf("ReplaceGold: staging: %w", err))
	}
	if err := s.publish(ctx); err != nil {
		s.dropStaging(ctx)
		return domain.NewPersistenceError(s.Name(), fmt.Errorf("ReplaceGold: publish: %w", err))
	}

	log.Info().
		Int("kpi_rows", len(kpis)).
		Int("trend_rows", len(trend)).
		Msg("Gold tables replaced")
	return nil
}

func (s *Store) stage(ctx context.Context, kpis []domain.KpiRow, trend []domain.MonthlyTrendRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{TableKpiExecution, TableMonthlyTrend} {
		staging := table + stagingSuffix
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, staging)); err != nil {
			return fmt.Errorf("drop %s: %w", staging, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s AS SELECT * FROM %s WHERE 0`, staging, table)); err != nil {
			return fmt.Errorf("create %s: %w", staging, err)
		}
	}

	kpiStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO kpi_execution_staging
			(area, annual_budget, accumulated_spend, execution_pct, execution_ratio, batch_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare kpi insert: %w", err)
	}
	defer kpiStmt.Close()

	for _, k := range kpis {
		if _, err := kpiStmt.ExecContext(ctx,
			k.Area,
			nullString(k.AnnualBudget.Valid, k.AnnualBudget.Decimal.StringFixed(2)),
			k.AccumulatedSpend.StringFixed(2),
			nullString(k.ExecutionPct.Valid, k.ExecutionPct.Decimal.String()),
			nullString(k.ExecutionRatio.Valid, k.ExecutionRatio.Decimal.String()),
			k.BatchID,
			formatTime(k.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert kpi %q: %w", k.Area, err)
		}
	}

	trendStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO monthly_trend_staging (month, area, monthly_spend)
		VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trend insert: %w", err)
	}
	defer trendStmt.Close()

	for _, t := range trend {
		if _, err := trendStmt.ExecContext(ctx, t.Month, t.Area, t.MonthlySpend.StringFixed(2)); err != nil {
			return fmt.Errorf("insert trend %s/%s: %w", t.Month, t.Area, err)
		}
	}

	return tx.Commit()
}

// publish copies staging into the live tables. The live tables are never
// dropped, so the view defined over kpi_execution stays valid.
func (s *Store) publish(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{TableKpiExecution, TableMonthlyTrend} {
		staging := table + stagingSuffix
		stmts := []string{
			fmt.Sprintf(`DELETE FROM %s`, table),
			fmt.Sprintf(`INSERT INTO %s SELECT * FROM %s`, table, staging),
			fmt.Sprintf(`DROP TABLE %s`, staging),
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("%s: %w", table, err)
			}
		}
	}
	return tx.Commit()
}

func (s *Store) dropStaging(ctx context.Context) {
	log := logger.FromContext(ctx)
	for _, table := range []string{TableKpiExecution, TableMonthlyTrend} {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table+stagingSuffix)); err != nil {
			log.Error().Err(err).Str("table", table).Msg("Failed to drop staging table")
		}
	}
}

func nullString(valid bool, s string) sql.NullString {
	return sql.NullString{String: s, Valid: valid}
}
