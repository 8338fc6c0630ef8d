package bigquery

import (
	"bytes"
	"encoding/json"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-etl/internal/domain"
)

const (
	kpiExecutionTable = "kpi_execution"
	monthlyTrendTable = "monthly_trend"
)

// kpiExecutionSchema mirrors the kpi_execution table of the local store.
var kpiExecutionSchema = bigquery.Schema{
	{Name: "area", Type: bigquery.StringFieldType, Required: true},
	{Name: "annual_budget", Type: bigquery.NumericFieldType, Precision: 18, Scale: 2},
	{Name: "accumulated_spend", Type: bigquery.NumericFieldType, Precision: 18, Scale: 2, Required: true},
	{Name: "execution_pct", Type: bigquery.NumericFieldType, Precision: 18, Scale: 2},
	{Name: "execution_ratio", Type: bigquery.NumericFieldType, Precision: 18, Scale: 4},
	{Name: "batch_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "created_at", Type: bigquery.TimestampFieldType, Required: true},
}

var monthlyTrendSchema = bigquery.Schema{
	{Name: "month", Type: bigquery.StringFieldType, Required: true},
	{Name: "area", Type: bigquery.StringFieldType, Required: true},
	{Name: "monthly_spend", Type: bigquery.NumericFieldType, Precision: 18, Scale: 2, Required: true},
}

// KpiExecutionRow is the load representation of a KPI row. NUMERIC values
// travel as decimal strings so no precision is lost.
type KpiExecutionRow struct {
	Area             string  `json:"area"`
	AnnualBudget     *string `json:"annual_budget"`
	AccumulatedSpend string  `json:"accumulated_spend"`
	ExecutionPct     *string `json:"execution_pct"`
	ExecutionRatio   *string `json:"execution_ratio"`
	BatchID          string  `json:"batch_id"`
	CreatedAt        string  `json:"created_at"`
}

type MonthlyTrendRow struct {
	Month        string `json:"month"`
	Area         string `json:"area"`
	MonthlySpend string `json:"monthly_spend"`
}

// NewKpiExecutionRow converts a domain KPI row.
func NewKpiExecutionRow(k domain.KpiRow) KpiExecutionRow {
	return KpiExecutionRow{
		Area:             k.Area,
		AnnualBudget:     nullNumeric(k.AnnualBudget, 2),
		AccumulatedSpend: k.AccumulatedSpend.StringFixed(2),
		ExecutionPct:     nullNumeric(k.ExecutionPct, 2),
		ExecutionRatio:   nullNumeric(k.ExecutionRatio, 4),
		BatchID:          k.BatchID,
		CreatedAt:        k.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func NewMonthlyTrendRow(t domain.MonthlyTrendRow) MonthlyTrendRow {
	return MonthlyTrendRow{
		Month:        t.Month,
		Area:         t.Area,
		MonthlySpend: t.MonthlySpend.StringFixed(2),
	}
}

// EncodeKpis renders KPI rows as newline-delimited JSON.
func EncodeKpis(kpis []domain.KpiRow) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, k := range kpis {
		if err := enc.Encode(NewKpiExecutionRow(k)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// EncodeTrend renders trend rows as newline-delimited JSON.
func EncodeTrend(trend []domain.MonthlyTrendRow) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, t := range trend {
		if err := enc.Encode(NewMonthlyTrendRow(t)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func nullNumeric(n decimal.NullDecimal, places int32) *string {
	if !n.Valid {
		return nil
	}
	s := n.Decimal.StringFixed(places)
	return &s
}
