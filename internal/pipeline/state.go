package pipeline

import (
	"github.com/dvloznov/budget-etl/internal/aggregate"
	"github.com/dvloznov/budget-etl/internal/cleaning"
	"github.com/dvloznov/budget-etl/internal/domain"
	"github.com/dvloznov/budget-etl/internal/ingest"
)

// Inputs names the two input tables of a run.
type Inputs struct {
	Expenses string
	Budgets  string
}

// Artifacts lists everything a run wrote. Empty fields were not written.
type Artifacts struct {
	RawExpenses   string
	RawBudgets    string
	CleanExpenses string
	CleanBudgets  string
	Quarantine    string
	GoldKpis      string
	GoldTrend     string
	Report        string

	// Archived holds the object URIs of uploaded artifacts.
	Archived []string
}

// Files returns the local artifact paths in write order.
func (a Artifacts) Files() []string {
	var files []string
	for _, f := range []string{a.RawExpenses, a.RawBudgets, a.CleanExpenses, a.CleanBudgets, a.Quarantine, a.GoldKpis, a.GoldTrend, a.Report} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// State holds the shared state across all pipeline steps.
type State struct {
	Run    domain.RunContext
	Inputs Inputs

	Expenses ingest.Table
	Budgets  ingest.Table

	Router        *cleaning.Router
	CleanExpenses []domain.ExpenseRecord
	CleanBudgets  []domain.BudgetRecord

	Gold   aggregate.Gold
	Report string

	Summary   domain.RunSummary
	Artifacts Artifacts
}

// NewState creates the state of a run.
func NewState(run domain.RunContext, in Inputs) *State {
	return &State{
		Run:    run,
		Inputs: in,
		Router: cleaning.NewRouter(run.Clock),
		Summary: domain.RunSummary{
			BatchID:   run.BatchID,
			StartedAt: run.IngestTS,
		},
	}
}
