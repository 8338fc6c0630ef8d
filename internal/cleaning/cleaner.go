package cleaning

import (
	"github.com/dvloznov/budget-etl/internal/domain"
)

// Cleaner chains the cleaning stages of both tables and routes every
// rejection to one shared Router.
type Cleaner struct {
	ExpenseSchema *SchemaValidator
	BudgetSchema  *SchemaValidator
	Range         RangeValidator
	Normalizer    *Normalizer
	Router        *Router
}

// NewCleaner wires the default schemas with vocab and router.
func NewCleaner(vocab Vocabulary, router *Router) *Cleaner {
	return &Cleaner{
		ExpenseSchema: NewExpenseSchema(),
		BudgetSchema:  NewBudgetSchema(),
		Normalizer:    NewNormalizer(vocab),
		Router:        router,
	}
}

// ExpenseOutcome is the result of cleaning the expense table.
type ExpenseOutcome struct {
	Clean             []domain.ExpenseRecord
	Quarantined       int
	DuplicatesRemoved int
}

// BudgetOutcome is the result of cleaning the budget table.
type BudgetOutcome struct {
	Clean       []domain.BudgetRecord
	Quarantined int
	Collapsed   int
}

// Expenses runs schema validation, range validation, normalization and
// deduplication. Each raw row ends up clean, quarantined or removed as a
// duplicate, exactly once.
func (c *Cleaner) Expenses(raws []domain.RawRecord) ExpenseOutcome {
	before := c.Router.Len()

	cands, rejected := c.ExpenseSchema.ValidateExpenses(raws)
	c.Router.CaptureAll(domain.TableExpenses, rejected)

	cands, rejected = c.Range.CheckExpenses(cands)
	c.Router.CaptureAll(domain.TableExpenses, rejected)

	cands, rejected = c.Normalizer.NormalizeExpenses(cands)
	c.Router.CaptureAll(domain.TableExpenses, rejected)

	recs := make([]domain.ExpenseRecord, len(cands))
	for i, cand := range cands {
		recs[i] = cand.Record
	}
	clean, removed := DedupExpenses(recs)

	return ExpenseOutcome{
		Clean:             clean,
		Quarantined:       c.Router.Len() - before,
		DuplicatesRemoved: removed,
	}
}

// Budgets runs schema validation and normalization, then keeps one budget
// per area.
func (c *Cleaner) Budgets(raws []domain.RawRecord) BudgetOutcome {
	before := c.Router.Len()

	cands, rejected := c.BudgetSchema.ValidateBudgets(raws)
	c.Router.CaptureAll(domain.TableBudgets, rejected)

	cands, rejected = c.Normalizer.NormalizeBudgets(cands)
	c.Router.CaptureAll(domain.TableBudgets, rejected)

	recs := make([]domain.BudgetRecord, len(cands))
	for i, cand := range cands {
		recs[i] = cand.Record
	}
	clean, collapsed := CollapseBudgets(recs)

	return BudgetOutcome{
		Clean:       clean,
		Quarantined: c.Router.Len() - before,
		Collapsed:   collapsed,
	}
}
