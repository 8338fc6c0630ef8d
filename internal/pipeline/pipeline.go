// Package pipeline runs one batch of the budget ETL: ingest, snapshot,
// clean, aggregate, persist, report and archive, as a chain of steps over
// a shared State.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dvloznov/budget-etl/internal/cleaning"
	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/logger"
	"github.com/dvloznov/budget-etl/internal/tracing"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps    []PipelineStep
	recorder Recorder
}

// NewPipeline creates a new pipeline with the given steps. recorder may be nil.
func NewPipeline(recorder Recorder, steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps, recorder: recorder}
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs all steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	tracer := tracing.Tracer()

	for i, step := range p.steps {
		log := logger.FromContext(ctx).With().Str("step", step.Name()).Logger()
		stepCtx, span := tracer.Start(logger.WithContext(ctx, log), "pipeline."+step.Name())
		span.SetAttributes(attribute.String("batch_id", state.Run.BatchID))

		started := time.Now()
		err := step.Execute(stepCtx, state)
		if p.recorder != nil {
			p.recorder.ObserveStep(step.Name(), time.Since(started))
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		span.End()
	}
	return nil
}

// Deps are the collaborators of a run. Mirrors, Archiver and Metrics are
// optional.
type Deps struct {
	Reader    InputReader
	Snapshots SnapshotStore
	Gold      GoldStore
	Mirrors   []GoldStore
	Registry  RunRegistry
	Reports   ReportSink
	Archiver  Archiver
	Metrics   Recorder

	// Vocabulary defaults to cleaning.DefaultVocabulary.
	Vocabulary cleaning.Vocabulary

	// Now is the run clock. Defaults to time.Now.
	Now func() time.Time
}

// Runner executes batch runs.
type Runner struct {
	deps Deps
}

// NewRunner creates a runner.
func NewRunner(deps Deps) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if len(deps.Vocabulary.CanonicalAreas) == 0 {
		deps.Vocabulary = cleaning.DefaultVocabulary()
	}
	return &Runner{deps: deps}
}

// Result is what a run produced. It is returned on failure too, holding
// whatever was done before the failing step.
type Result struct {
	Summary   domain.RunSummary
	Artifacts Artifacts
	State     *State
}

// Run executes one batch. The run is registered as RUNNING first and ends
// as SUCCEEDED or FAILED in the registry.
func (r *Runner) Run(ctx context.Context, in Inputs) (*Result, error) {
	start := r.deps.Now()
	run := domain.NewRunContext(start)
	run.Now = r.deps.Now

	log := logger.WithBatch(logger.FromContext(ctx), run.BatchID)
	ctx = logger.WithContext(ctx, log)

	ctx, span := tracing.Tracer().Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch_id", run.BatchID),
		attribute.String("inputs.expenses", in.Expenses),
		attribute.String("inputs.budgets", in.Budgets),
	)

	if err := r.deps.Registry.StartRun(ctx, run.BatchID, start); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("Run: registering batch %s: %w", run.BatchID, err)
	}
	log.Info().
		Str("expenses", in.Expenses).
		Str("budgets", in.Budgets).
		Msg("Run started")

	state := NewState(run, in)
	err := NewBudgetPipeline(r.deps).Execute(ctx, state)
	state.Summary.FinishedAt = r.deps.Now()
	result := &Result{Summary: state.Summary, Artifacts: state.Artifacts, State: state}

	if err != nil {
		r.deps.Registry.MarkRunFailed(ctx, run.BatchID, err)
		r.record(state.Summary, domain.RunStatusFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Msg("Run failed")
		return result, err
	}

	if err := r.deps.Registry.MarkRunSucceeded(ctx, state.Summary); err != nil {
		r.record(state.Summary, domain.RunStatusFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("Run: completing batch %s: %w", run.BatchID, err)
	}
	r.record(state.Summary, domain.RunStatusSucceeded)

	log.Info().
		Int("raw_expenses", state.Summary.RawExpenses).
		Int("clean_expenses", state.Summary.CleanExpenses).
		Int("quarantined", state.Summary.Quarantined).
		Int("duplicates_removed", state.Summary.DuplicatesRemoved).
		Int("kpi_areas", state.Summary.KpiAreas).
		Dur("elapsed", state.Summary.FinishedAt.Sub(start)).
		Msg("Run succeeded")
	return result, nil
}

func (r *Runner) record(summary domain.RunSummary, status domain.RunStatus) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordRun(summary, status)
	}
}
