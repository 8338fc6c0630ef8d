// Package parquet writes the columnar batch snapshots of the lake: raw
// inputs, clean tables, quarantine and the gold tables. Snapshots are
// append-only by batch.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go-source/writerfile"
	pqschema "github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/logger"
)

// Lake layers.
const (
	LayerRaw        = "raw"
	LayerClean      = "clean"
	LayerQuarantine = "quarantine"
	LayerGold       = "gold"
)

// Gold table names used in snapshot file names.
const (
	GoldKpiExecution = "kpi_execution"
	GoldMonthlyTrend = "monthly_trend"
)

const rowGroupSize = 128 * 1024 * 1024

// ErrSnapshotExists is returned when a batch snapshot is already on disk.
var ErrSnapshotExists = errors.New("snapshot already exists")

// Store writes snapshots below Root.
type Store struct {
	Root string
}

// NewStore creates a snapshot store rooted at root.
func NewStore(root string) *Store {
	return &Store{Root: root}
}

// RawPath returns raw/<table>_batch_<id>.parquet.
func (s *Store) RawPath(table, batchID string) string {
	return filepath.Join(s.Root, LayerRaw, fmt.Sprintf("%s_batch_%s.parquet", table, batchID))
}

// CleanPath returns clean/<table>_clean_batch_<id>.parquet.
func (s *Store) CleanPath(table, batchID string) string {
	return filepath.Join(s.Root, LayerClean, fmt.Sprintf("%s_clean_batch_%s.parquet", table, batchID))
}

// QuarantinePath returns quarantine/quarantine_batch_<id>.parquet.
func (s *Store) QuarantinePath(batchID string) string {
	return filepath.Join(s.Root, LayerQuarantine, fmt.Sprintf("quarantine_batch_%s.parquet", batchID))
}

// GoldPath returns gold/<table>_batch_<id>.parquet.
func (s *Store) GoldPath(table, batchID string) string {
	return filepath.Join(s.Root, LayerGold, fmt.Sprintf("%s_batch_%s.parquet", table, batchID))
}

// WriteRaw snapshots an input table exactly as read.
func (s *Store) WriteRaw(ctx context.Context, batchID, table string, recs []domain.RawRecord) (string, error) {
	path := s.RawPath(table, batchID)

	var err error
	switch table {
	case domain.TableExpenses:
		rows := make([]interface{}, len(recs))
		for i, r := range recs {
			rows[i] = newRawExpenseRow(r)
		}
		err = writeFile(path, new(rawExpenseRow), rows)
	case domain.TableBudgets:
		rows := make([]interface{}, len(recs))
		for i, r := range recs {
			rows[i] = newRawBudgetRow(r)
		}
		err = writeFile(path, new(rawBudgetRow), rows)
	default:
		err = fmt.Errorf("unknown table %q", table)
	}
	if err != nil {
		return "", domain.NewPersistenceError(path, err)
	}

	logWritten(ctx, path, len(recs))
	return path, nil
}

// WriteCleanExpenses snapshots the clean expense table.
func (s *Store) WriteCleanExpenses(ctx context.Context, batchID string, recs []domain.ExpenseRecord) (string, error) {
	path := s.CleanPath(domain.TableExpenses, batchID)

	rows := make([]interface{}, len(recs))
	for i, r := range recs {
		rows[i] = newCleanExpenseRow(r)
	}
	if err := writeFile(path, new(cleanExpenseRow), rows); err != nil {
		return "", domain.NewPersistenceError(path, err)
	}

	logWritten(ctx, path, len(recs))
	return path, nil
}

// WriteCleanBudgets snapshots the clean budget table.
func (s *Store) WriteCleanBudgets(ctx context.Context, batchID string, recs []domain.BudgetRecord) (string, error) {
	path := s.CleanPath(domain.TableBudgets, batchID)

	rows := make([]interface{}, len(recs))
	for i, r := range recs {
		rows[i] = newCleanBudgetRow(r)
	}
	if err := writeFile(path, new(cleanBudgetRow), rows); err != nil {
		return "", domain.NewPersistenceError(path, err)
	}

	logWritten(ctx, path, len(recs))
	return path, nil
}

// WriteQuarantine snapshots the quarantined records. Nothing is written for
// an empty quarantine and the returned path is empty.
func (s *Store) WriteQuarantine(ctx context.Context, batchID string, recs []domain.QuarantinedRecord) (string, error) {
	if len(recs) == 0 {
		log := logger.FromContext(ctx)
		log.Info().Msg("Quarantine is empty, no snapshot written")
		return "", nil
	}
	path := s.QuarantinePath(batchID)

	rows := make([]interface{}, len(recs))
	for i, r := range recs {
		rows[i] = newQuarantineRow(r)
	}
	if err := writeFile(path, new(quarantineRow), rows); err != nil {
		return "", domain.NewPersistenceError(path, err)
	}

	logWritten(ctx, path, len(recs))
	return path, nil
}

// WriteGold snapshots the KPI and monthly trend tables of the batch and
// returns both paths.
func (s *Store) WriteGold(ctx context.Context, batchID string, kpis []domain.KpiRow, trend []domain.MonthlyTrendRow) (string, string, error) {
	kpiPath := s.GoldPath(GoldKpiExecution, batchID)
	rows := make([]interface{}, len(kpis))
	for i, k := range kpis {
		rows[i] = newKpiRow(k)
	}
	if err := writeFile(kpiPath, new(kpiRow), rows); err != nil {
		return "", "", domain.NewPersistenceError(kpiPath, err)
	}
	logWritten(ctx, kpiPath, len(kpis))

	trendPath := s.GoldPath(GoldMonthlyTrend, batchID)
	rows = make([]interface{}, len(trend))
	for i, t := range trend {
		rows[i] = newTrendRow(t)
	}
	if err := writeFile(trendPath, new(trendRow), rows); err != nil {
		return kpiPath, "", domain.NewPersistenceError(trendPath, err)
	}
	logWritten(ctx, trendPath, len(trend))

	return kpiPath, trendPath, nil
}

// CountRows returns the number of rows in a snapshot file.
func CountRows(path string) (int64, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return 0, fmt.Errorf("CountRows: open %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil {
		return 0, fmt.Errorf("CountRows: read footer of %s: %w", path, err)
	}
	defer pr.ReadStop()

	return pr.GetNumRows(), nil
}

// BatchFiles lists the snapshot files of a batch that exist on disk.
func (s *Store) BatchFiles(batchID string) []string {
	candidates := []string{
		s.RawPath(domain.TableExpenses, batchID),
		s.RawPath(domain.TableBudgets, batchID),
		s.CleanPath(domain.TableExpenses, batchID),
		s.CleanPath(domain.TableBudgets, batchID),
		s.QuarantinePath(batchID),
		s.GoldPath(GoldKpiExecution, batchID),
		s.GoldPath(GoldMonthlyTrend, batchID),
	}
	var files []string
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			files = append(files, f)
		}
	}
	return files
}

// writeFile creates path exclusively and writes rows with the schema of
// obj. A partially written file is removed.
func writeFile(path string, obj interface{}, rows []interface{}) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return ErrSnapshotExists
	}
	if err != nil {
		return fmt.Errorf("create parquet: %w", err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(path)
		}
	}()

	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(file), obj, 1)
	if err != nil {
		return fmt.Errorf("parquet schema: %w", err)
	}
	pw.RowGroupSize = rowGroupSize
	pw.CompressionType = pqschema.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err = pw.Write(row); err != nil {
			pw.WriteStop()
			return fmt.Errorf("parquet write: %w", err)
		}
	}
	if err = pw.WriteStop(); err != nil {
		return fmt.Errorf("parquet flush: %w", err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("close parquet file: %w", err)
	}
	return nil
}

func logWritten(ctx context.Context, path string, rows int) {
	log := logger.FromContext(ctx)
	log.Info().Str("path", path).Int("rows", rows).Msg("Snapshot written")
}
