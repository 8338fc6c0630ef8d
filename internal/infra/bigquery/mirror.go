// Package bigquery mirrors the gold tables into a BigQuery dataset. Each
// table is replaced with a WRITE_TRUNCATE load job, which BigQuery applies
// atomically.
package bigquery

import (
	"bytes"
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/logger"
)

// Mirror is a GoldStore backed by a BigQuery dataset.
type Mirror struct {
	client   *bigquery.Client
	dataset  string
	location string
}

// NewMirror creates a mirror with its own BigQuery client.
func NewMirror(ctx context.Context, projectID, dataset, location string) (*Mirror, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewMirror: creating client: %w", err)
	}
	if location != "" {
		client.Location = location
	}
	return NewMirrorWithClient(client, dataset, location), nil
}

// NewMirrorWithClient creates a mirror on a shared client.
func NewMirrorWithClient(client *bigquery.Client, dataset, location string) *Mirror {
	return &Mirror{client: client, dataset: dataset, location: location}
}

// Close closes the BigQuery client connection.
func (m *Mirror) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// Name identifies the mirror in logs and errors.
func (m *Mirror) Name() string {
	return "bigquery"
}

// ReplaceGold loads both gold tables with WRITE_TRUNCATE.
func (m *Mirror) ReplaceGold(ctx context.Context, kpis []domain.KpiRow, trend []domain.MonthlyTrendRow) error {
	kpiData, err := EncodeKpis(kpis)
	if err != nil {
		return domain.NewPersistenceError(m.Name(), fmt.Errorf("ReplaceGold: encoding kpis: %w", err))
	}
	trendData, err := EncodeTrend(trend)
	if err != nil {
		return domain.NewPersistenceError(m.Name(), fmt.Errorf("ReplaceGold: encoding trend: %w", err))
	}

	if err := LoadTableWithClient(ctx, m.client, m.dataset, kpiExecutionTable, kpiExecutionSchema, kpiData); err != nil {
		return domain.NewPersistenceError(m.Name(), err)
	}
	if err := LoadTableWithClient(ctx, m.client, m.dataset, monthlyTrendTable, monthlyTrendSchema, trendData); err != nil {
		return domain.NewPersistenceError(m.Name(), err)
	}
	return nil
}

// LoadTableWithClient replaces dataset.table with the given NDJSON rows.
// The table is created when missing.
func LoadTableWithClient(ctx context.Context, client *bigquery.Client, dataset, table string, schema bigquery.Schema, ndjson []byte) error {
	log := logger.FromContext(ctx)

	source := bigquery.NewReaderSource(bytes.NewReader(ndjson))
	source.SourceFormat = bigquery.JSON
	source.Schema = schema

	loader := client.Dataset(dataset).Table(table).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("LoadTable: starting load into %s.%s: %w", dataset, table, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("LoadTable: waiting for job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("LoadTable: job %s failed: %w", job.ID(), err)
	}

	log.Info().
		Str("table", dataset+"."+table).
		Str("job_id", job.ID()).
		Msg("Warehouse table replaced")
	return nil
}

// Kpis reads the mirrored KPI table ordered by area.
func (m *Mirror) Kpis(ctx context.Context) ([]domain.KpiRow, error) {
	return ListKpisWithClient(ctx, m.client, m.dataset)
}

type kpiQueryRow struct {
	Area             string                 `bigquery:"area"`
	AnnualBudget     bigquery.NullString    `bigquery:"annual_budget"`
	AccumulatedSpend string                 `bigquery:"accumulated_spend"`
	ExecutionPct     bigquery.NullString    `bigquery:"execution_pct"`
	ExecutionRatio   bigquery.NullString    `bigquery:"execution_ratio"`
	BatchID          string                 `bigquery:"batch_id"`
	CreatedAt        bigquery.NullTimestamp `bigquery:"created_at"`
}

// ListKpisWithClient queries dataset.kpi_execution. NUMERIC columns are cast
// to STRING so they scan without going through big.Rat.
func ListKpisWithClient(ctx context.Context, client *bigquery.Client, dataset string) ([]domain.KpiRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			area,
			CAST(annual_budget AS STRING) AS annual_budget,
			CAST(accumulated_spend AS STRING) AS accumulated_spend,
			CAST(execution_pct AS STRING) AS execution_pct,
			CAST(execution_ratio AS STRING) AS execution_ratio,
			batch_id,
			created_at
		FROM `+"`%s.%s`"+`
		ORDER BY area`, dataset, kpiExecutionTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListKpis: query: %w", err)
	}

	var out []domain.KpiRow
	for {
		var r kpiQueryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListKpis: iterating: %w", err)
		}
		k, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListKpis: %w", err)
		}
		out = append(out, k)
	}
	return out, nil
}

func (r kpiQueryRow) toDomain() (domain.KpiRow, error) {
	spend, err := decimal.NewFromString(r.AccumulatedSpend)
	if err != nil {
		return domain.KpiRow{}, fmt.Errorf("area %q: accumulated_spend: %w", r.Area, err)
	}
	k := domain.KpiRow{Area: r.Area, AccumulatedSpend: spend, BatchID: r.BatchID}
	if r.CreatedAt.Valid {
		k.CreatedAt = r.CreatedAt.Timestamp.UTC()
	}
	for _, f := range []struct {
		src bigquery.NullString
		dst *decimal.NullDecimal
	}{
		{r.AnnualBudget, &k.AnnualBudget},
		{r.ExecutionPct, &k.ExecutionPct},
		{r.ExecutionRatio, &k.ExecutionRatio},
	} {
		if !f.src.Valid {
			continue
		}
		d, err := decimal.NewFromString(f.src.StringVal)
		if err != nil {
			return domain.KpiRow{}, fmt.Errorf("area %q: %w", r.Area, err)
		}
		*f.dst = decimal.NewNullDecimal(d)
	}
	return k, nil
}
