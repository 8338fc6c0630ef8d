package pipeline

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/budget-etl/internal/aggregate"
	"github.com/dvloznov/budget-etl/internal/cleaning"
	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/logger"
	"github.com/dvloznov/budget-etl/internal/report"
)

// PipelineStep represents a single step in the batch pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// IngestStep reads both input tables. Both are read before anything is
// written, so a missing input leaves no artifact behind.
type IngestStep struct {
	Reader InputReader
}

func (s *IngestStep) Name() string { return StepIngest }

func (s *IngestStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)

	expenses, err := s.Reader.Read(ctx, state.Run, domain.TableExpenses, state.Inputs.Expenses)
	if err != nil {
		return err
	}
	budgets, err := s.Reader.Read(ctx, state.Run, domain.TableBudgets, state.Inputs.Budgets)
	if err != nil {
		return err
	}

	state.Expenses = expenses
	state.Budgets = budgets
	state.Summary.ExpensesFile = expenses.SourceFile
	state.Summary.BudgetsFile = budgets.SourceFile
	state.Summary.RawExpenses = len(expenses.Records)
	state.Summary.RawBudgets = len(budgets.Records)

	log.Info().
		Int("expenses", len(expenses.Records)).
		Int("budgets", len(budgets.Records)).
		Msg("Inputs read")
	return nil
}

// RawSnapshotStep stores both input tables as read.
type RawSnapshotStep struct {
	Snapshots SnapshotStore
}

func (s *RawSnapshotStep) Name() string { return StepRawSnapshot }

func (s *RawSnapshotStep) Execute(ctx context.Context, state *State) error {
	path, err := s.Snapshots.WriteRaw(ctx, state.Run.BatchID, domain.TableExpenses, state.Expenses.Records)
	if err != nil {
		return err
	}
	state.Artifacts.RawExpenses = path

	path, err = s.Snapshots.WriteRaw(ctx, state.Run.BatchID, domain.TableBudgets, state.Budgets.Records)
	if err != nil {
		return err
	}
	state.Artifacts.RawBudgets = path
	return nil
}

// CleanExpensesStep validates, normalizes and deduplicates the expenses.
type CleanExpensesStep struct {
	Vocabulary cleaning.Vocabulary
}

func (s *CleanExpensesStep) Name() string { return StepCleanExpenses }

func (s *CleanExpensesStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)

	out := cleaning.NewCleaner(s.Vocabulary, state.Router).Expenses(state.Expenses.Records)
	state.CleanExpenses = out.Clean
	state.Summary.CleanExpenses = len(out.Clean)
	state.Summary.DuplicatesRemoved = out.DuplicatesRemoved
	state.Summary.FirstExpenseDate, state.Summary.LastExpenseDate = dateRange(out.Clean)

	log.Info().
		Int("clean", len(out.Clean)).
		Int("quarantined", out.Quarantined).
		Int("duplicates_removed", out.DuplicatesRemoved).
		Msg("Expenses cleaned")
	return nil
}

// CleanBudgetsStep validates and normalizes the budgets, keeping one row
// per area.
type CleanBudgetsStep struct {
	Vocabulary cleaning.Vocabulary
}

func (s *CleanBudgetsStep) Name() string { return StepCleanBudgets }

func (s *CleanBudgetsStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)

	out := cleaning.NewCleaner(s.Vocabulary, state.Router).Budgets(state.Budgets.Records)
	state.CleanBudgets = out.Clean
	state.Summary.CleanBudgets = len(out.Clean)
	state.Summary.BudgetDupsCollapsed = out.Collapsed

	log.Info().
		Int("clean", len(out.Clean)).
		Int("quarantined", out.Quarantined).
		Int("collapsed", out.Collapsed).
		Msg("Budgets cleaned")
	return nil
}

// CleanSnapshotStep stores the clean tables and the quarantine.
type CleanSnapshotStep struct {
	Snapshots SnapshotStore
}

func (s *CleanSnapshotStep) Name() string { return StepCleanSnapshot }

func (s *CleanSnapshotStep) Execute(ctx context.Context, state *State) error {
	batchID := state.Run.BatchID

	path, err := s.Snapshots.WriteCleanExpenses(ctx, batchID, state.CleanExpenses)
	if err != nil {
		return err
	}
	state.Artifacts.CleanExpenses = path

	path, err = s.Snapshots.WriteCleanBudgets(ctx, batchID, state.CleanBudgets)
	if err != nil {
		return err
	}
	state.Artifacts.CleanBudgets = path

	quarantined := state.Router.Records()
	path, err = s.Snapshots.WriteQuarantine(ctx, batchID, quarantined)
	if err != nil {
		return err
	}
	state.Artifacts.Quarantine = path
	state.Summary.Quarantined = len(quarantined)
	state.Summary.QuarantineByReason = state.Router.CountByReason()
	return nil
}

// AggregateStep computes the KPI and trend tables.
type AggregateStep struct{}

func (s *AggregateStep) Name() string { return StepAggregate }

func (s *AggregateStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)

	state.Gold = aggregate.Compute(state.Run, state.CleanExpenses, state.CleanBudgets)
	state.Summary.KpiAreas = len(state.Gold.Kpis)
	state.Summary.AreasWithoutBudget = state.Gold.AreasWithoutBudget

	log.Info().
		Int("kpi_areas", len(state.Gold.Kpis)).
		Int("trend_rows", len(state.Gold.Trend)).
		Int("areas_without_budget", state.Gold.AreasWithoutBudget).
		Msg("Gold tables computed")
	return nil
}

// PersistGoldStep snapshots the gold tables to the lake, then replaces them
// in the primary store.
type PersistGoldStep struct {
	Store     GoldStore
	Snapshots SnapshotStore
}

func (s *PersistGoldStep) Name() string { return StepPersistGold }

func (s *PersistGoldStep) Execute(ctx context.Context, state *State) error {
	kpiPath, trendPath, err := s.Snapshots.WriteGold(ctx, state.Run.BatchID, state.Gold.Kpis, state.Gold.Trend)
	if err != nil {
		return err
	}
	state.Artifacts.GoldKpis = kpiPath
	state.Artifacts.GoldTrend = trendPath

	return persistGold(ctx, s.Store, state)
}

// MirrorGoldStep replaces the gold tables in every configured mirror.
type MirrorGoldStep struct {
	Mirrors []GoldStore
}

func (s *MirrorGoldStep) Name() string { return StepMirrorGold }

func (s *MirrorGoldStep) Execute(ctx context.Context, state *State) error {
	for _, m := range s.Mirrors {
		if err := persistGold(ctx, m, state); err != nil {
			return err
		}
	}
	return nil
}

func persistGold(ctx context.Context, store GoldStore, state *State) error {
	if err := store.ReplaceGold(ctx, state.Gold.Kpis, state.Gold.Trend); err != nil {
		return asPersistenceError(store.Name(), err)
	}
	return nil
}

// RenderReportStep renders the report and hands it to the sink.
type RenderReportStep struct {
	Sink ReportSink
}

func (s *RenderReportStep) Name() string { return StepRenderReport }

func (s *RenderReportStep) Execute(ctx context.Context, state *State) error {
	state.Report = report.Render(report.Input{
		GeneratedAt: state.Run.Clock(),
		Summary:     state.Summary,
		Kpis:        state.Gold.Kpis,
		Trend:       state.Gold.Trend,
	})

	path, err := s.Sink.Write(ctx, state.Report)
	if err != nil {
		return asPersistenceError(targetReport, err)
	}
	state.Artifacts.Report = path
	return nil
}

// ArchiveStep uploads every local artifact of the batch.
type ArchiveStep struct {
	Archiver Archiver
}

func (s *ArchiveStep) Name() string { return StepArchive }

func (s *ArchiveStep) Execute(ctx context.Context, state *State) error {
	uris, err := s.Archiver.Archive(ctx, state.Run.BatchID, state.Artifacts.Files())
	state.Artifacts.Archived = uris
	if err != nil {
		return asPersistenceError(targetArchive, err)
	}
	return nil
}

func asPersistenceError(target string, err error) error {
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return domain.NewPersistenceError(target, err)
}

func dateRange(recs []domain.ExpenseRecord) (first, last *civil.Date) {
	for i := range recs {
		d := recs[i].Date
		if first == nil || d.Before(*first) {
			first = &d
		}
		if last == nil || d.After(*last) {
			last = &d
		}
	}
	return first, last
}

// NewBudgetPipeline creates the standard step chain for one run.
func NewBudgetPipeline(deps Deps) *Pipeline {
	steps := []PipelineStep{
		&IngestStep{Reader: deps.Reader},
		&RawSnapshotStep{Snapshots: deps.Snapshots},
		&CleanExpensesStep{Vocabulary: deps.Vocabulary},
		&CleanBudgetsStep{Vocabulary: deps.Vocabulary},
		&CleanSnapshotStep{Snapshots: deps.Snapshots},
		&AggregateStep{},
		&PersistGoldStep{Store: deps.Gold, Snapshots: deps.Snapshots},
	}
	if len(deps.Mirrors) > 0 {
		steps = append(steps, &MirrorGoldStep{Mirrors: deps.Mirrors})
	}
	steps = append(steps, &RenderReportStep{Sink: deps.Reports})
	if deps.Archiver != nil {
		steps = append(steps, &ArchiveStep{Archiver: deps.Archiver})
	}
	return NewPipeline(deps.Metrics, steps...)
}
