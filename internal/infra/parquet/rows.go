package parquet

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-etl/internal/domain"
)

// traceCols holds the lineage columns shared by every snapshot. The writer
// does not flatten embedded structs, so each row type repeats them.
type traceCols struct {
	IngestTS   int64
	SourceFile string
	BatchID    string
	EventID    string
	SourceRow  int32
}

type rawExpenseRow struct {
	Date     *string `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Area     *string `parquet:"name=area, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Category *string `parquet:"name=category, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Amount   *string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Extra    *string `parquet:"name=extra, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`

	IngestTS   int64  `parquet:"name=_ingest_ts, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	SourceFile string `parquet:"name=_source_file, type=BYTE_ARRAY, convertedtype=UTF8"`
	BatchID    string `parquet:"name=_batch_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventID    string `parquet:"name=_event_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceRow  int32  `parquet:"name=_source_row, type=INT32"`
}

type rawBudgetRow struct {
	Area         *string `parquet:"name=area, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	AnnualBudget *string `parquet:"name=annual_budget, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Year         *string `parquet:"name=year, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Extra        *string `parquet:"name=extra, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`

	IngestTS   int64  `parquet:"name=_ingest_ts, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	SourceFile string `parquet:"name=_source_file, type=BYTE_ARRAY, convertedtype=UTF8"`
	BatchID    string `parquet:"name=_batch_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventID    string `parquet:"name=_event_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceRow  int32  `parquet:"name=_source_row, type=INT32"`
}

type cleanExpenseRow struct {
	Date     int32  `parquet:"name=date, type=INT32, convertedtype=DATE"`
	Area     string `parquet:"name=area, type=BYTE_ARRAY, convertedtype=UTF8"`
	Category string `parquet:"name=category, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount   int64  `parquet:"name=amount, type=INT64, convertedtype=DECIMAL, scale=2, precision=18"`

	IngestTS   int64  `parquet:"name=_ingest_ts, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	SourceFile string `parquet:"name=_source_file, type=BYTE_ARRAY, convertedtype=UTF8"`
	BatchID    string `parquet:"name=_batch_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventID    string `parquet:"name=_event_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceRow  int32  `parquet:"name=_source_row, type=INT32"`
}

type cleanBudgetRow struct {
	Area         string `parquet:"name=area, type=BYTE_ARRAY, convertedtype=UTF8"`
	AnnualBudget int64  `parquet:"name=annual_budget, type=INT64, convertedtype=DECIMAL, scale=2, precision=18"`
	Year         *int32 `parquet:"name=year, type=INT32, repetitiontype=OPTIONAL"`

	IngestTS   int64  `parquet:"name=_ingest_ts, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	SourceFile string `parquet:"name=_source_file, type=BYTE_ARRAY, convertedtype=UTF8"`
	BatchID    string `parquet:"name=_batch_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventID    string `parquet:"name=_event_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceRow  int32  `parquet:"name=_source_row, type=INT32"`
}

type quarantineRow struct {
	SourceTable  string  `parquet:"name=source_table, type=BYTE_ARRAY, convertedtype=UTF8"`
	Date         *string `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Area         *string `parquet:"name=area, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Category     *string `parquet:"name=category, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Amount       *string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	AnnualBudget *string `parquet:"name=annual_budget, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Year         *string `parquet:"name=year, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Extra        *string `parquet:"name=extra, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Reason       string  `parquet:"name=reason, type=BYTE_ARRAY, convertedtype=UTF8"`
	QuarantineTS int64   `parquet:"name=quarantine_timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`

	IngestTS   int64  `parquet:"name=_ingest_ts, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	SourceFile string `parquet:"name=_source_file, type=BYTE_ARRAY, convertedtype=UTF8"`
	BatchID    string `parquet:"name=_batch_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventID    string `parquet:"name=_event_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceRow  int32  `parquet:"name=_source_row, type=INT32"`
}

type kpiRow struct {
	Area             string `parquet:"name=area, type=BYTE_ARRAY, convertedtype=UTF8"`
	AnnualBudget     *int64 `parquet:"name=annual_budget, type=INT64, convertedtype=DECIMAL, scale=2, precision=18, repetitiontype=OPTIONAL"`
	AccumulatedSpend int64  `parquet:"name=accumulated_spend, type=INT64, convertedtype=DECIMAL, scale=2, precision=18"`
	ExecutionPct     *int64 `parquet:"name=execution_pct, type=INT64, convertedtype=DECIMAL, scale=2, precision=18, repetitiontype=OPTIONAL"`
	ExecutionRatio   *int64 `parquet:"name=execution_ratio, type=INT64, convertedtype=DECIMAL, scale=4, precision=18, repetitiontype=OPTIONAL"`
	BatchID          string `parquet:"name=batch_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt        int64  `parquet:"name=created_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

type trendRow struct {
	Month        string `parquet:"name=month, type=BYTE_ARRAY, convertedtype=UTF8"`
	Area         string `parquet:"name=area, type=BYTE_ARRAY, convertedtype=UTF8"`
	MonthlySpend int64  `parquet:"name=monthly_spend, type=INT64, convertedtype=DECIMAL, scale=2, precision=18"`
}

var epoch = civil.Date{Year: 1970, Month: time.January, Day: 1}

func toDays(d civil.Date) int32 {
	return int32(d.DaysSince(epoch))
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// toUnscaled returns the DECIMAL(18,2) representation of d.
func toUnscaled(d decimal.Decimal) int64 {
	return toUnscaledScale(d, 2)
}

func toUnscaledScale(d decimal.Decimal, scale int32) int64 {
	return d.Round(scale).Shift(scale).IntPart()
}

// toNullUnscaled returns nil for a null decimal.
func toNullUnscaled(d decimal.NullDecimal, scale int32) *int64 {
	if !d.Valid {
		return nil
	}
	v := toUnscaledScale(d.Decimal, scale)
	return &v
}

func toTrace(t domain.Trace) traceCols {
	return traceCols{
		IngestTS:   toMillis(t.IngestTS),
		SourceFile: t.SourceFile,
		BatchID:    t.BatchID,
		EventID:    t.EventID.String(),
		SourceRow:  int32(t.Row),
	}
}

// extraJSON serializes the fields not covered by known columns, or nil.
func extraJSON(fields map[string]*string, known ...string) *string {
	skip := make(map[string]struct{}, len(known))
	for _, k := range known {
		skip[k] = struct{}{}
	}

	extra := make(map[string]*string)
	for k, v := range fields {
		if _, ok := skip[k]; !ok {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		return nil
	}

	data, err := json.Marshal(extra)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

func newRawExpenseRow(r domain.RawRecord) *rawExpenseRow {
	t := toTrace(r.Trace)
	return &rawExpenseRow{
		Date:       r.Fields[domain.FieldDate],
		Area:       r.Fields[domain.FieldArea],
		Category:   r.Fields[domain.FieldCategory],
		Amount:     r.Fields[domain.FieldAmount],
		Extra:      extraJSON(r.Fields, domain.FieldDate, domain.FieldArea, domain.FieldCategory, domain.FieldAmount),
		IngestTS:   t.IngestTS,
		SourceFile: t.SourceFile,
		BatchID:    t.BatchID,
		EventID:    t.EventID,
		SourceRow:  t.SourceRow,
	}
}

func newRawBudgetRow(r domain.RawRecord) *rawBudgetRow {
	t := toTrace(r.Trace)
	return &rawBudgetRow{
		Area:         r.Fields[domain.FieldArea],
		AnnualBudget: r.Fields[domain.FieldAnnualBudget],
		Year:         r.Fields[domain.FieldYear],
		Extra:        extraJSON(r.Fields, domain.FieldArea, domain.FieldAnnualBudget, domain.FieldYear),
		IngestTS:     t.IngestTS,
		SourceFile:   t.SourceFile,
		BatchID:      t.BatchID,
		EventID:      t.EventID,
		SourceRow:    t.SourceRow,
	}
}

func newCleanExpenseRow(e domain.ExpenseRecord) *cleanExpenseRow {
	t := toTrace(e.Trace)
	return &cleanExpenseRow{
		Date:       toDays(e.Date),
		Area:       e.Area,
		Category:   e.Category,
		Amount:     toUnscaled(e.Amount),
		IngestTS:   t.IngestTS,
		SourceFile: t.SourceFile,
		BatchID:    t.BatchID,
		EventID:    t.EventID,
		SourceRow:  t.SourceRow,
	}
}

func newCleanBudgetRow(b domain.BudgetRecord) *cleanBudgetRow {
	t := toTrace(b.Trace)
	row := &cleanBudgetRow{
		Area:         b.Area,
		AnnualBudget: toUnscaled(b.AnnualBudget),
		IngestTS:     t.IngestTS,
		SourceFile:   t.SourceFile,
		BatchID:      t.BatchID,
		EventID:      t.EventID,
		SourceRow:    t.SourceRow,
	}
	if b.Year != nil {
		y := int32(*b.Year)
		row.Year = &y
	}
	return row
}

func newQuarantineRow(q domain.QuarantinedRecord) *quarantineRow {
	t := toTrace(q.Trace)
	return &quarantineRow{
		SourceTable:  q.Table,
		Date:         q.Fields[domain.FieldDate],
		Area:         q.Fields[domain.FieldArea],
		Category:     q.Fields[domain.FieldCategory],
		Amount:       q.Fields[domain.FieldAmount],
		AnnualBudget: q.Fields[domain.FieldAnnualBudget],
		Year:         q.Fields[domain.FieldYear],
		Extra: extraJSON(q.Fields,
			domain.FieldDate, domain.FieldArea, domain.FieldCategory, domain.FieldAmount,
			domain.FieldAnnualBudget, domain.FieldYear),
		Reason:       q.Reason,
		QuarantineTS: toMillis(q.QuarantineTS),
		IngestTS:     t.IngestTS,
		SourceFile:   t.SourceFile,
		BatchID:      t.BatchID,
		EventID:      t.EventID,
		SourceRow:    t.SourceRow,
	}
}

func newKpiRow(k domain.KpiRow) *kpiRow {
	return &kpiRow{
		Area:             k.Area,
		AnnualBudget:     toNullUnscaled(k.AnnualBudget, 2),
		AccumulatedSpend: toUnscaled(k.AccumulatedSpend),
		ExecutionPct:     toNullUnscaled(k.ExecutionPct, 2),
		ExecutionRatio:   toNullUnscaled(k.ExecutionRatio, 4),
		BatchID:          k.BatchID,
		CreatedAt:        toMillis(k.CreatedAt),
	}
}

func newTrendRow(t domain.MonthlyTrendRow) *trendRow {
	return &trendRow{
		Month:        t.Month,
		Area:         t.Area,
		MonthlySpend: toUnscaled(t.MonthlySpend),
	}
}
