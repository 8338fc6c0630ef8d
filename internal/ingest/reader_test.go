package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/budget-etl/internal/domain"
)

var testRun = domain.RunContext{
	BatchID:  "20240315_101500",
	IngestTS: time.Date(2024, 3, 15, 10, 15, 0, 0, time.UTC),
}

func fixedIDs() func() uuid.UUID {
	n := 0
	return func() uuid.UUID {
		n++
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(n)})
	}
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type mockStorage struct {
	FetchFunc func(ctx context.Context, uri string) ([]byte, error)
}

func (m *mockStorage) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return nil
}

func (m *mockStorage) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return m.FetchFunc(ctx, uri)
}

func TestRead_CSV(t *testing.T) {
	path := writeInput(t, "gastos.csv", "\ufefffecha,area,partida,importe\n"+
		"2024-01-05,Ventas,Salarios,1500.50\n"+
		"\n"+
		"2024-01-06,,Publicidad,NaN\n")

	r := &Reader{NewEventID: fixedIDs()}
	table, err := r.Read(context.Background(), testRun, domain.TableExpenses, path)
	require.NoError(t, err)

	assert.Equal(t, "gastos.csv", table.SourceFile)
	assert.Equal(t, []string{"date", "area", "category", "amount"}, table.Columns)
	require.Len(t, table.Records, 2)

	first := table.Records[0]
	v, ok := first.Value(domain.FieldAmount)
	assert.True(t, ok)
	assert.Equal(t, "1500.50", v)
	assert.Equal(t, 1, first.Row)
	assert.Equal(t, testRun.BatchID, first.BatchID)
	assert.Equal(t, testRun.IngestTS, first.IngestTS)
	assert.Equal(t, "gastos.csv", first.SourceFile)
	assert.NotEqual(t, uuid.Nil, first.EventID)

	second := table.Records[1]
	assert.Equal(t, 2, second.Row)
	_, ok = second.Value(domain.FieldArea)
	assert.False(t, ok, "empty cell is null")
	_, ok = second.Value(domain.FieldAmount)
	assert.False(t, ok, "NaN is null")
	assert.NotEqual(t, first.EventID, second.EventID)
}

func TestRead_ShortRowsAreNull(t *testing.T) {
	path := writeInput(t, "budgets.csv", "area,presupuesto_anual,año\nVentas,120000\n")

	table, err := NewReader(nil).Read(context.Background(), testRun, domain.TableBudgets, path)
	require.NoError(t, err)
	require.Len(t, table.Records, 1)

	_, ok := table.Records[0].Value(domain.FieldYear)
	assert.False(t, ok)
	v, _ := table.Records[0].Value(domain.FieldAnnualBudget)
	assert.Equal(t, "120000", v)
}

func TestRead_HonorsTraceabilityColumns(t *testing.T) {
	id := uuid.MustParse("4b3c2a1d-0000-4000-8000-000000000001")
	path := writeInput(t, "expenses.csv", "date,area,category,amount,_ingest_ts,_source_file,_batch_id,_event_id\n"+
		"2024-01-05,Ventas,Salarios,10,2024-01-01 08:00:00,upstream.csv,20240101_080000,"+id.String()+"\n"+
		"2024-01-06,Ventas,Salarios,11,not-a-time,,,bad-id\n")

	table, err := NewReader(nil).Read(context.Background(), testRun, domain.TableExpenses, path)
	require.NoError(t, err)
	require.Len(t, table.Records, 2)

	first := table.Records[0]
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), first.IngestTS)
	assert.Equal(t, "upstream.csv", first.SourceFile)
	assert.Equal(t, "20240101_080000", first.BatchID)
	assert.Equal(t, id, first.EventID)
	assert.NotContains(t, first.Fields, ColEventID)

	second := table.Records[1]
	assert.Equal(t, testRun.IngestTS, second.IngestTS)
	assert.Equal(t, "expenses.csv", second.SourceFile)
	assert.Equal(t, testRun.BatchID, second.BatchID)
	assert.NotEqual(t, uuid.Nil, second.EventID)
	assert.Equal(t, []string{"date", "area", "category", "amount"}, table.Columns)
}

func TestRead_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Fecha", "Area", "Partida", "Importe"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"2024-02-01", "marketing", "publicidad", "250.75"}))
	path := filepath.Join(t.TempDir(), "gastos.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := NewReader(nil).Read(context.Background(), testRun, domain.TableExpenses, path)
	require.NoError(t, err)
	require.Len(t, table.Records, 1)

	rec := table.Records[0]
	for field, want := range map[string]string{
		domain.FieldDate:     "2024-02-01",
		domain.FieldArea:     "marketing",
		domain.FieldCategory: "publicidad",
		domain.FieldAmount:   "250.75",
	} {
		got, ok := rec.Value(field)
		assert.True(t, ok, field)
		assert.Equal(t, want, got, field)
	}
}

func TestRead_MissingInput(t *testing.T) {
	_, err := NewReader(nil).Read(context.Background(), testRun, domain.TableExpenses, filepath.Join(t.TempDir(), "gone.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingInput))
}

func TestRead_UnsupportedFormat(t *testing.T) {
	path := writeInput(t, "gastos.json", "[]")
	_, err := NewReader(nil).Read(context.Background(), testRun, domain.TableExpenses, path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrMissingInput))
	assert.Contains(t, err.Error(), "unsupported input format")
}

func TestRead_GCS(t *testing.T) {
	store := &mockStorage{FetchFunc: func(ctx context.Context, uri string) ([]byte, error) {
		assert.Equal(t, "gs://inputs/2024/presupuestos.csv", uri)
		return []byte("area,annual_budget\nTI,90000\n"), nil
	}}

	table, err := NewReader(store).Read(context.Background(), testRun, domain.TableBudgets, "gs://inputs/2024/presupuestos.csv")
	require.NoError(t, err)
	assert.Equal(t, "presupuestos.csv", table.SourceFile)
	require.Len(t, table.Records, 1)
}

func TestRead_GCSMissingObject(t *testing.T) {
	store := &mockStorage{FetchFunc: func(ctx context.Context, uri string) ([]byte, error) {
		return nil, storage.ErrObjectNotExist
	}}

	_, err := NewReader(store).Read(context.Background(), testRun, domain.TableBudgets, "gs://inputs/missing.csv")
	assert.ErrorIs(t, err, domain.ErrMissingInput)
}

func TestRead_GCSWithoutStorage(t *testing.T) {
	_, err := NewReader(nil).Read(context.Background(), testRun, domain.TableBudgets, "gs://inputs/b.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no storage configured")
}

func TestIsNull(t *testing.T) {
	for _, tok := range []string{"", "NA", "N/A", "NaN", "null", "None", "<NA>", "#N/A"} {
		assert.True(t, IsNull(tok), tok)
	}
	for _, v := range []string{"0", " ", "Ventas", "na"} {
		assert.False(t, IsNull(v), v)
	}
}

func TestCanonicalHeader(t *testing.T) {
	tests := map[string]string{
		" Fecha ":           "date",
		"PARTIDA":           "category",
		"importe":           "amount",
		"presupuesto_anual": "annual_budget",
		"Año":               "year",
		"anio":              "year",
		"area":              "area",
		"comentario":        "comentario",
	}
	for in, want := range tests {
		assert.Equal(t, want, CanonicalHeader(in), in)
	}
}
