package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/logger"
)

// maxErrorMessageLength bounds the error text kept in batch_runs.
const maxErrorMessageLength = 2000

// ErrRunNotFound is returned by GetRun for an unknown batch id.
var ErrRunNotFound = errors.New("run not found")

// StartRun registers a new run in RUNNING state. A batch id that is already
// registered gives domain.ErrBatchExists and leaves the earlier row as is.
func (s *Store) StartRun(ctx context.Context, batchID string, startedAt time.Time) error {
	log := logger.FromContext(ctx)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_runs (batch_id, status, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT (batch_id) DO NOTHING`,
		batchID, string(domain.RunStatusRunning), formatTime(startedAt),
	)
	if err != nil {
		return fmt.Errorf("StartRun: inserting run %s: %w", batchID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("StartRun: inserting run %s: %w", batchID, err)
	}
	if n == 0 {
		return fmt.Errorf("StartRun: %s: %w", batchID, domain.ErrBatchExists)
	}

	log.Debug().Str("batch_id", batchID).Msg("Run registered")
	return nil
}

// MarkRunSucceeded records the counters of a finished run.
func (s *Store) MarkRunSucceeded(ctx context.Context, summary domain.RunSummary) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE batch_runs
		SET status = ?,
		    finished_at = ?,
		    error_message = NULL,
		    raw_expenses = ?,
		    raw_budgets = ?,
		    clean_expenses = ?,
		    clean_budgets = ?,
		    quarantined = ?,
		    duplicates_removed = ?
		WHERE batch_id = ?`,
		string(domain.RunStatusSucceeded),
		formatTime(summary.FinishedAt),
		summary.RawExpenses,
		summary.RawBudgets,
		summary.CleanExpenses,
		summary.CleanBudgets,
		summary.Quarantined,
		summary.DuplicatesRemoved,
		summary.BatchID,
	)
	if err != nil {
		return fmt.Errorf("MarkRunSucceeded: updating run %s: %w", summary.BatchID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("MarkRunSucceeded: %s: %w", summary.BatchID, ErrRunNotFound)
	}
	return nil
}

// MarkRunFailed marks a run as FAILED. Errors are logged rather than
// returned so the original failure stays the one reported to the caller.
func (s *Store) MarkRunFailed(ctx context.Context, batchID string, runErr error) {
	log := logger.FromContext(ctx)

	errorMsg := ""
	if runErr != nil {
		errorMsg = runErr.Error()
	}
	if len(errorMsg) > maxErrorMessageLength {
		errorMsg = errorMsg[:maxErrorMessageLength]
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE batch_runs
		SET status = ?, finished_at = ?, error_message = ?
		WHERE batch_id = ?`,
		string(domain.RunStatusFailed), formatTime(s.now()), errorMsg, batchID,
	)
	if err != nil {
		log.Error().Err(err).Str("batch_id", batchID).Msg("Failed to mark run as failed")
	}
}

const runColumns = `batch_id, status, started_at, finished_at, error_message,
	raw_expenses, raw_budgets, clean_expenses, clean_budgets, quarantined, duplicates_removed`

// GetRun returns one run by batch id.
func (s *Store) GetRun(ctx context.Context, batchID string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM batch_runs WHERE batch_id = ?`, batchID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetRun: %s: %w", batchID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetRun: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A non-positive limit means
// no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM batch_runs
		ORDER BY started_at DESC, batch_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRuns: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRuns: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*domain.Run, error) {
	var (
		run        domain.Run
		status     string
		startedAt  string
		finishedAt sql.NullString
		errorMsg   sql.NullString
	)
	if err := sc.Scan(
		&run.BatchID, &status, &startedAt, &finishedAt, &errorMsg,
		&run.RawExpenses, &run.RawBudgets, &run.CleanExpenses, &run.CleanBudgets,
		&run.Quarantined, &run.DuplicatesRemoved,
	); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		run.FinishedAt = &t
	}
	run.ErrorMessage = errorMsg.String
	return &run, nil
}
