package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/infra/parquet"
	"github.com/dvloznov/budget-etl/internal/infra/sqlite"
)

var started = time.Date(2024, 3, 15, 10, 15, 0, 0, time.UTC)

func TestPrintRuns(t *testing.T) {
	buf := &bytes.Buffer{}
	printRuns(buf, []domain.Run{
		{BatchID: "20240315_101500", Status: domain.RunStatusSucceeded, StartedAt: started, RawExpenses: 9, CleanExpenses: 6, Quarantined: 2, DuplicatesRemoved: 1},
		{BatchID: "20240314_090000", Status: domain.RunStatusFailed, StartedAt: started.Add(-25 * time.Hour)},
	})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "BATCH")
	assert.Contains(t, string(lines[1]), "20240315_101500")
	assert.Contains(t, string(lines[1]), "SUCCEEDED")
	assert.Contains(t, string(lines[2]), "FAILED")
}

func TestPrintRuns_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	printRuns(buf, nil)
	assert.Equal(t, "No runs recorded.\n", buf.String())
}

func TestPrintExecutionDetail(t *testing.T) {
	buf := &bytes.Buffer{}
	printExecutionDetail(buf, []sqlite.ExecutionDetail{
		{
			KpiRow: domain.KpiRow{
				Area:             "Ventas",
				AnnualBudget:     decimal.NewNullDecimal(decimal.RequireFromString("60000")),
				AccumulatedSpend: decimal.RequireFromString("50000"),
				ExecutionPct:     decimal.NewNullDecimal(decimal.RequireFromString("83.33")),
				BatchID:          "20240315_101500",
			},
			Status:          "NORMAL",
			RemainingBudget: decimal.NewNullDecimal(decimal.RequireFromString("10000")),
		},
		{
			KpiRow: domain.KpiRow{Area: "Operaciones", AccumulatedSpend: decimal.RequireFromString("700"), BatchID: "20240315_101500"},
			Status: "NO BUDGET",
		},
	})

	out := buf.String()
	assert.Contains(t, out, "60000.00")
	assert.Contains(t, out, "83.33")
	assert.Contains(t, out, "NO BUDGET")
	assert.Contains(t, out, "Batch 20240315_101500")
}

func TestPrintTrend(t *testing.T) {
	buf := &bytes.Buffer{}
	printTrend(buf, []domain.MonthlyTrendRow{
		{Month: "2024-01", Area: "Ventas", MonthlySpend: decimal.RequireFromString("48500")},
	})
	assert.Contains(t, buf.String(), "2024-01")
	assert.Contains(t, buf.String(), "48500.00")
}

func TestPrintKpis_NullsAsDash(t *testing.T) {
	buf := &bytes.Buffer{}
	printKpis(buf, []domain.KpiRow{{Area: "Operaciones", AccumulatedSpend: decimal.RequireFromString("700"), BatchID: "b"}})
	assert.Contains(t, buf.String(), "-")
	assert.Contains(t, buf.String(), "700.00")
}

func TestSnapshotCounts(t *testing.T) {
	lake := parquet.NewStore(t.TempDir())
	ctx := context.Background()
	_, err := lake.WriteCleanBudgets(ctx, "20240315_101500", []domain.BudgetRecord{
		{Area: "Ventas", AnnualBudget: decimal.RequireFromString("60000")},
		{Area: "Marketing", AnnualBudget: decimal.RequireFromString("20000")},
	})
	require.NoError(t, err)

	counts := snapshotCounts(lake, "20240315_101500", zerolog.Nop())
	require.Len(t, counts, 1)
	assert.Equal(t, int64(2), counts[0].Rows)
	assert.Empty(t, snapshotCounts(lake, "19990101_000000", zerolog.Nop()))
}

func TestPrintRun(t *testing.T) {
	finished := started.Add(2 * time.Second)
	buf := &bytes.Buffer{}
	printRun(buf, &domain.Run{
		BatchID:      "20240315_101500",
		Status:       domain.RunStatusFailed,
		StartedAt:    started,
		FinishedAt:   &finished,
		ErrorMessage: "pipeline step 1 (ingest) failed: missing input",
	}, []snapshotCount{{Path: filepath.Join("lake", "raw.parquet"), Rows: 9}})

	out := buf.String()
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "missing input")
	assert.Contains(t, out, "Snapshots (1)")
	assert.Contains(t, out, "9  "+filepath.Join("lake", "raw.parquet"))
}

func TestPrintUsage(t *testing.T) {
	buf := &bytes.Buffer{}
	printUsage(buf)
	for _, cmd := range []string{"runs", "inspect", "trend", "archive", "help"} {
		assert.Contains(t, buf.String(), "  "+cmd)
	}
}
