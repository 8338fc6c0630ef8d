package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/infra/sqlite"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_EndToEnd(t *testing.T) {
	t.Setenv("BUDGET_CONFIG", "")
	dir := t.TempDir()
	expenses := writeFile(t, dir, "gastos.csv", "fecha,area,partida,importe\n"+
		"2024-01-05,Ventas,Salarios,1500\n"+
		"2024-01-20,marketing,Publicidad,300.50\n"+
		"2024-02-01,Ventas,Viajes,-10\n")
	budgets := writeFile(t, dir, "presupuestos.csv", "area,presupuesto_anual\nVentas,12000\nMarketing,1000\n")
	textfile := filepath.Join(dir, "budget_etl.prom")
	t.Setenv("BUDGET_METRICS_TEXTFILE_PATH", textfile)

	db := filepath.Join(dir, "budget.db")
	out := &bytes.Buffer{}
	err := run(context.Background(), []string{
		"-expenses", expenses,
		"-budgets", budgets,
		"-lake", filepath.Join(dir, "lake"),
		"-output", filepath.Join(dir, "out"),
		"-db", db,
	}, out)
	require.NoError(t, err)

	summary := out.String()
	assert.Contains(t, summary, "processed:  3 expenses, 2 budgets")
	assert.Contains(t, summary, "valid:      2 expenses, 2 budgets")
	assert.Contains(t, summary, "quarantined: 1")
	assert.Contains(t, summary, filepath.Join(dir, "out", "report.md"))
	assert.Contains(t, summary, filepath.Join(dir, "lake", "gold", "kpi_execution_batch_"))
	assert.FileExists(t, filepath.Join(dir, "out", "report.md"))
	assert.FileExists(t, textfile)

	store, err := sqlite.Open(context.Background(), db)
	require.NoError(t, err)
	defer store.Close()

	kpis, err := store.Kpis(context.Background())
	require.NoError(t, err)
	assert.Len(t, kpis, 2)

	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunStatusSucceeded, runs[0].Status)
}

func TestRun_MissingInput(t *testing.T) {
	t.Setenv("BUDGET_CONFIG", "")
	dir := t.TempDir()
	budgets := writeFile(t, dir, "presupuestos.csv", "area,presupuesto_anual\nVentas,12000\n")

	err := run(context.Background(), []string{
		"-expenses", filepath.Join(dir, "missing.csv"),
		"-budgets", budgets,
		"-lake", filepath.Join(dir, "lake"),
		"-output", filepath.Join(dir, "out"),
		"-db", filepath.Join(dir, "budget.db"),
	}, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingInput)
	assert.NoDirExists(t, filepath.Join(dir, "lake"))
	assert.NoFileExists(t, filepath.Join(dir, "out", "report.md"))
}

func TestRun_BadFlag(t *testing.T) {
	err := run(context.Background(), []string{"-nope"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRun_InputsFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "inputs:\n  expenses: a.csv\n  budgets: b.csv\n")
	t.Setenv("BUDGET_CONFIG", cfgPath)

	err := run(context.Background(), []string{"-db", filepath.Join(dir, "x.db"), "-lake", filepath.Join(dir, "lake"), "-output", dir}, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingInput)
}
