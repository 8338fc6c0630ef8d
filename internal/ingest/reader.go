// Package ingest reads the expense and budget input tables and stamps every
// row with traceability metadata.
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/gcs"
	"github.com/dvloznov/budget-etl/internal/logger"
)

// Table is one input table after reading.
type Table struct {
	Name       string
	SourceFile string
	Columns    []string
	Records    []domain.RawRecord
}

// Reader loads input tables from local files or gs:// URIs.
type Reader struct {
	// Storage serves gs:// inputs. Nil means only local files are accepted.
	Storage gcs.StorageService

	// NewEventID generates event ids for rows without one.
	NewEventID func() uuid.UUID
}

// NewReader creates a reader. storage may be nil.
func NewReader(storage gcs.StorageService) *Reader {
	return &Reader{Storage: storage, NewEventID: uuid.New}
}

// Read loads the table at path. A missing file yields an error wrapping
// domain.ErrMissingInput.
func (r *Reader) Read(ctx context.Context, run domain.RunContext, name, path string) (Table, error) {
	log := logger.FromContext(ctx)

	data, err := r.load(ctx, path)
	if err != nil {
		return Table{}, err
	}

	var rows [][]string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = parseCSV(data)
	case ".xlsx":
		rows, err = parseXLSX(data)
	default:
		err = fmt.Errorf("unsupported input format %q", ext)
	}
	if err != nil {
		return Table{}, fmt.Errorf("Read: %s: %w", path, err)
	}

	table := r.buildTable(run, name, gcs.BaseName(path), rows)
	log.Info().
		Str("table", name).
		Str("source_file", table.SourceFile).
		Int("rows", len(table.Records)).
		Msg("Input table read")
	return table, nil
}

func (r *Reader) load(ctx context.Context, path string) ([]byte, error) {
	if gcs.IsURI(path) {
		if r.Storage == nil {
			return nil, fmt.Errorf("Read: %s: no storage configured for gs:// inputs", path)
		}
		data, err := r.Storage.Fetch(ctx, path)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("Read: %s: %w", path, domain.ErrMissingInput)
		}
		if err != nil {
			return nil, fmt.Errorf("Read: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("Read: %s: %w", path, domain.ErrMissingInput)
	}
	if err != nil {
		return nil, fmt.Errorf("Read: failed to read %s: %w", path, err)
	}
	return data, nil
}

func parseCSV(data []byte) ([][]string, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func parseXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func (r *Reader) buildTable(run domain.RunContext, name, sourceFile string, rows [][]string) Table {
	table := Table{Name: name, SourceFile: sourceFile}
	if len(rows) == 0 {
		return table
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = CanonicalHeader(h)
		if !strings.HasPrefix(headers[i], "_") && headers[i] != "" {
			table.Columns = append(table.Columns, headers[i])
		}
	}

	n := 0
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		n++
		table.Records = append(table.Records, r.buildRecord(run, sourceFile, headers, row, n))
	}
	return table
}

func (r *Reader) buildRecord(run domain.RunContext, sourceFile string, headers, row []string, n int) domain.RawRecord {
	rec := domain.RawRecord{
		Fields: make(map[string]*string, len(headers)),
		Trace: domain.Trace{
			IngestTS:   run.IngestTS,
			SourceFile: sourceFile,
			BatchID:    run.BatchID,
			Row:        n,
		},
	}

	for i, h := range headers {
		if h == "" {
			continue
		}
		var cell *string
		if i < len(row) && !IsNull(row[i]) {
			v := row[i]
			cell = &v
		}

		switch h {
		case ColIngestTS:
			if cell != nil {
				if ts, ok := parseTimestamp(*cell); ok {
					rec.IngestTS = ts
				}
			}
		case ColSourceFile:
			if cell != nil && strings.TrimSpace(*cell) != "" {
				rec.SourceFile = strings.TrimSpace(*cell)
			}
		case ColBatchID:
			if cell != nil && strings.TrimSpace(*cell) != "" {
				rec.BatchID = strings.TrimSpace(*cell)
			}
		case ColEventID:
			if cell != nil {
				if id, err := uuid.Parse(strings.TrimSpace(*cell)); err == nil {
					rec.EventID = id
				}
			}
		default:
			rec.Fields[h] = cell
		}
	}

	if rec.EventID == uuid.Nil {
		rec.EventID = r.newEventID()
	}
	return rec
}

func (r *Reader) newEventID() uuid.UUID {
	if r.NewEventID == nil {
		return uuid.New()
	}
	return r.NewEventID()
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
