package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/infra/sqlite"
)

type MockStore struct {
	ExecutionDetailFunc func(ctx context.Context) ([]sqlite.ExecutionDetail, error)
	TrendFunc           func(ctx context.Context, area string) ([]domain.MonthlyTrendRow, error)
	ListRunsFunc        func(ctx context.Context, limit int) ([]domain.Run, error)
	GetRunFunc          func(ctx context.Context, batchID string) (*domain.Run, error)
}

func (m *MockStore) ExecutionDetail(ctx context.Context) ([]sqlite.ExecutionDetail, error) {
	return m.ExecutionDetailFunc(ctx)
}

func (m *MockStore) Trend(ctx context.Context, area string) ([]domain.MonthlyTrendRow, error) {
	return m.TrendFunc(ctx, area)
}

func (m *MockStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	return m.ListRunsFunc(ctx, limit)
}

func (m *MockStore) GetRun(ctx context.Context, batchID string) (*domain.Run, error) {
	return m.GetRunFunc(ctx, batchID)
}

var started = time.Date(2024, 3, 15, 10, 15, 0, 0, time.UTC)

func serve(t *testing.T, store Store, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(store, []string{"*"}, zerolog.New(io.Discard)).ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	rec, body := serve(t, &MockStore{}, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListKpis(t *testing.T) {
	store := &MockStore{ExecutionDetailFunc: func(ctx context.Context) ([]sqlite.ExecutionDetail, error) {
		return []sqlite.ExecutionDetail{
			{
				KpiRow: domain.KpiRow{
					Area:             "Ventas",
					AnnualBudget:     decimal.NewNullDecimal(decimal.RequireFromString("60000")),
					AccumulatedSpend: decimal.RequireFromString("50000"),
					ExecutionPct:     decimal.NewNullDecimal(decimal.RequireFromString("83.33")),
					ExecutionRatio:   decimal.NewNullDecimal(decimal.RequireFromString("0.8333")),
					BatchID:          "20240315_101500",
					CreatedAt:        started,
				},
				Status:          "NORMAL",
				RemainingBudget: decimal.NewNullDecimal(decimal.RequireFromString("10000")),
			},
			{
				KpiRow: domain.KpiRow{Area: "Operaciones", AccumulatedSpend: decimal.RequireFromString("700"), BatchID: "20240315_101500", CreatedAt: started},
				Status: "NO BUDGET",
			},
		}, nil
	}}

	rec, body := serve(t, store, http.MethodGet, "/api/kpis")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, float64(2), body["count"])

	kpis := body["kpis"].([]interface{})
	first := kpis[0].(map[string]interface{})
	assert.Equal(t, "Ventas", first["area"])
	assert.Equal(t, "83.33", first["execution_pct"])
	assert.Equal(t, "NORMAL", first["status"])
	assert.Equal(t, "10000", first["remaining_budget"])

	second := kpis[1].(map[string]interface{})
	assert.Nil(t, second["execution_pct"])
	assert.Nil(t, second["annual_budget"])
	assert.Equal(t, "NO BUDGET", second["status"])
}

func TestListKpis_StoreError(t *testing.T) {
	store := &MockStore{ExecutionDetailFunc: func(ctx context.Context) ([]sqlite.ExecutionDetail, error) {
		return nil, errors.New("no such table: kpi_execution")
	}}
	rec, body := serve(t, store, http.MethodGet, "/api/kpis")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to list KPIs", body["error"])
}

func TestListTrend_FiltersByArea(t *testing.T) {
	var gotArea string
	store := &MockStore{TrendFunc: func(ctx context.Context, area string) ([]domain.MonthlyTrendRow, error) {
		gotArea = area
		return []domain.MonthlyTrendRow{{Month: "2024-01", Area: area, MonthlySpend: decimal.RequireFromString("48500")}}, nil
	}}

	rec, body := serve(t, store, http.MethodGet, "/api/trend?area=Ventas")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ventas", gotArea)
	assert.Equal(t, float64(1), body["count"])
}

func TestListRuns(t *testing.T) {
	finished := started.Add(time.Second)
	var gotLimit int
	store := &MockStore{ListRunsFunc: func(ctx context.Context, limit int) ([]domain.Run, error) {
		gotLimit = limit
		return []domain.Run{{BatchID: "20240315_101500", Status: domain.RunStatusSucceeded, StartedAt: started, FinishedAt: &finished, RawExpenses: 9}}, nil
	}}

	rec, body := serve(t, store, http.MethodGet, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, gotLimit)
	runs := body["runs"].([]interface{})
	require.Len(t, runs, 1)
	assert.Equal(t, "SUCCEEDED", runs[0].(map[string]interface{})["status"])

	_, _ = serve(t, store, http.MethodGet, "/api/runs?limit=5")
	assert.Equal(t, 5, gotLimit)
}

func TestListRuns_BadLimit(t *testing.T) {
	for _, limit := range []string{"0", "-1", "many"} {
		t.Run(limit, func(t *testing.T) {
			rec, _ := serve(t, &MockStore{}, http.MethodGet, "/api/runs?limit="+limit)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetRun(t *testing.T) {
	store := &MockStore{GetRunFunc: func(ctx context.Context, batchID string) (*domain.Run, error) {
		if batchID != "20240315_101500" {
			return nil, fmt.Errorf("GetRun: %s: %w", batchID, sqlite.ErrRunNotFound)
		}
		return &domain.Run{BatchID: batchID, Status: domain.RunStatusFailed, StartedAt: started, ErrorMessage: "pipeline step 1 (ingest) failed"}, nil
	}}

	rec, body := serve(t, store, http.MethodGet, "/api/runs/20240315_101500")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "FAILED", body["status"])
	assert.Equal(t, "pipeline step 1 (ingest) failed", body["error_message"])

	rec, body = serve(t, store, http.MethodGet, "/api/runs/19990101_000000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Run not found", body["error"])
}

func TestUnknownRouteAndMethod(t *testing.T) {
	rec, _ := serve(t, &MockStore{}, http.MethodGet, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(t, &MockStore{}, http.MethodPost, "/api/kpis")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecoversFromPanic(t *testing.T) {
	store := &MockStore{ExecutionDetailFunc: func(ctx context.Context) ([]sqlite.ExecutionDetail, error) {
		panic("boom")
	}}
	rec, body := serve(t, store, http.MethodGet, "/api/kpis")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["error"])
}
