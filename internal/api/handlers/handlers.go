package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-etl/internal/api/middleware"
	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/infra/sqlite"
)

// DefaultRunsLimit caps GET /api/runs when no limit is given.
const DefaultRunsLimit = 50

// GoldReader reads the published gold tables.
type GoldReader interface {
	ExecutionDetail(ctx context.Context) ([]sqlite.ExecutionDetail, error)
	Trend(ctx context.Context, area string) ([]domain.MonthlyTrendRow, error)
}

// RunReader reads the run registry.
type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	GetRun(ctx context.Context, batchID string) (*domain.Run, error)
}

// KpiResponse is one row of GET /api/kpis.
type KpiResponse struct {
	Area             string              `json:"area"`
	AnnualBudget     decimal.NullDecimal `json:"annual_budget"`
	AccumulatedSpend decimal.Decimal     `json:"accumulated_spend"`
	ExecutionPct     decimal.NullDecimal `json:"execution_pct"`
	ExecutionRatio   decimal.NullDecimal `json:"execution_ratio"`
	Status           string              `json:"status"`
	RemainingBudget  decimal.NullDecimal `json:"remaining_budget"`
	BatchID          string              `json:"batch_id"`
	CreatedAt        time.Time           `json:"created_at"`
}

// TrendResponse is one row of GET /api/trend.
type TrendResponse struct {
	Month        string          `json:"month"`
	Area         string          `json:"area"`
	MonthlySpend decimal.Decimal `json:"monthly_spend"`
}

// RunResponse is one batch run.
type RunResponse struct {
	BatchID           string     `json:"batch_id"`
	Status            string     `json:"status"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	RawExpenses       int        `json:"raw_expenses"`
	RawBudgets        int        `json:"raw_budgets"`
	CleanExpenses     int        `json:"clean_expenses"`
	CleanBudgets      int        `json:"clean_budgets"`
	Quarantined       int        `json:"quarantined"`
	DuplicatesRemoved int        `json:"duplicates_removed"`
}

func newRunResponse(r domain.Run) RunResponse {
	return RunResponse{
		BatchID:           r.BatchID,
		Status:            string(r.Status),
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		ErrorMessage:      r.ErrorMessage,
		RawExpenses:       r.RawExpenses,
		RawBudgets:        r.RawBudgets,
		CleanExpenses:     r.CleanExpenses,
		CleanBudgets:      r.CleanBudgets,
		Quarantined:       r.Quarantined,
		DuplicatesRemoved: r.DuplicatesRemoved,
	}
}

// GoldHandler handles the KPI and trend endpoints.
type GoldHandler struct {
	store GoldReader
	log   zerolog.Logger
}

// NewGoldHandler creates a new gold handler.
func NewGoldHandler(store GoldReader, log zerolog.Logger) *GoldHandler {
	return &GoldHandler{store: store, log: log}
}

// ListKpis handles GET /api/kpis
func (h *GoldHandler) ListKpis(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ExecutionDetail(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read execution detail")
		middleware.WriteError(w, r, http.StatusInternalServerError, "Failed to list KPIs")
		return
	}

	kpis := make([]KpiResponse, 0, len(rows))
	for _, d := range rows {
		kpis = append(kpis, KpiResponse{
			Area:             d.Area,
			AnnualBudget:     d.AnnualBudget,
			AccumulatedSpend: d.AccumulatedSpend,
			ExecutionPct:     d.ExecutionPct,
			ExecutionRatio:   d.ExecutionRatio,
			Status:           d.Status,
			RemainingBudget:  d.RemainingBudget,
			BatchID:          d.BatchID,
			CreatedAt:        d.CreatedAt,
		})
	}

	middleware.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"kpis":  kpis,
		"count": len(kpis),
	})
}

// ListTrend handles GET /api/trend?area=
func (h *GoldHandler) ListTrend(w http.ResponseWriter, r *http.Request) {
	area := r.URL.Query().Get("area")

	rows, err := h.store.Trend(r.Context(), area)
	if err != nil {
		h.log.Error().Err(err).Str("area", area).Msg("Failed to read monthly trend")
		middleware.WriteError(w, r, http.StatusInternalServerError, "Failed to list trend")
		return
	}

	trend := make([]TrendResponse, 0, len(rows))
	for _, t := range rows {
		trend = append(trend, TrendResponse{Month: t.Month, Area: t.Area, MonthlySpend: t.MonthlySpend})
	}

	middleware.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"trend": trend,
		"count": len(trend),
	})
}

// RunsHandler handles the run registry endpoints.
type RunsHandler struct {
	store RunReader
	log   zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(store RunReader, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{store: store, log: log}
}

// ListRuns handles GET /api/runs?limit=
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := DefaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			middleware.WriteError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, r, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, newRunResponse(run))
	}

	middleware.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"runs":  out,
		"count": len(out),
	})
}

// GetRun handles GET /api/runs/{batchID}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	run, err := h.store.GetRun(r.Context(), batchID)
	if errors.Is(err, sqlite.ErrRunNotFound) {
		middleware.WriteError(w, r, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("batch_id", batchID).Msg("Failed to get run")
		middleware.WriteError(w, r, http.StatusInternalServerError, "Failed to get run")
		return
	}

	middleware.WriteJSON(w, r, http.StatusOK, newRunResponse(*run))
}
