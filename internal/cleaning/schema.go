package cleaning

import (
	"strings"

	"github.com/dvloznov/budget-etl/internal/domain"
)

// SchemaValidator checks required-field presence and type coercibility.
type SchemaValidator struct {
	Required []string
}

// NewExpenseSchema returns the validator for the expense table.
func NewExpenseSchema() *SchemaValidator {
	return &SchemaValidator{Required: []string{
		domain.FieldDate, domain.FieldArea, domain.FieldCategory, domain.FieldAmount,
	}}
}

// NewBudgetSchema returns the validator for the budget table. Year is optional.
func NewBudgetSchema() *SchemaValidator {
	return &SchemaValidator{Required: []string{
		domain.FieldArea, domain.FieldAnnualBudget,
	}}
}

// SplitMissing partitions raws into rows with every required field present
// and rows missing at least one. Blank strings count as missing.
func (v *SchemaValidator) SplitMissing(raws []domain.RawRecord) (present, missing []domain.RawRecord) {
	for _, r := range raws {
		if v.hasRequired(r) {
			present = append(present, r)
		} else {
			missing = append(missing, r)
		}
	}
	return present, missing
}

func (v *SchemaValidator) hasRequired(r domain.RawRecord) bool {
	for _, f := range v.Required {
		val, ok := r.Value(f)
		if !ok || strings.TrimSpace(val) == "" {
			return false
		}
	}
	return true
}

// ValidateExpenses coerces expense rows. Rows are rejected in two passes:
// missing required fields first, then failed date or amount coercion.
// Accepted records are otherwise untouched.
func (v *SchemaValidator) ValidateExpenses(raws []domain.RawRecord) ([]ExpenseCandidate, []Rejected) {
	present, missing := v.SplitMissing(raws)

	var (
		valid   = make([]ExpenseCandidate, 0, len(present))
		badType []domain.RawRecord
	)
	for _, r := range present {
		dateStr, _ := r.Value(domain.FieldDate)
		amountStr, _ := r.Value(domain.FieldAmount)
		area, _ := r.Value(domain.FieldArea)
		category, _ := r.Value(domain.FieldCategory)

		date, err := ParseDate(dateStr)
		if err != nil {
			badType = append(badType, r)
			continue
		}
		amount, err := ParseMoney(amountStr)
		if err != nil {
			badType = append(badType, r)
			continue
		}

		valid = append(valid, ExpenseCandidate{
			Record: domain.ExpenseRecord{
				Date:     date,
				Area:     area,
				Category: category,
				Amount:   amount,
				Trace:    r.Trace,
			},
			Raw: r,
		})
	}

	var rejected []Rejected
	rejected = appendRejected(rejected, ReasonMissingField, missing)
	rejected = appendRejected(rejected, ReasonTypeConversion, badType)
	return valid, rejected
}

// ValidateBudgets coerces budget rows. The annual budget must be numeric and
// the year, when present, an integer.
func (v *SchemaValidator) ValidateBudgets(raws []domain.RawRecord) ([]BudgetCandidate, []Rejected) {
	present, missing := v.SplitMissing(raws)

	var (
		valid   = make([]BudgetCandidate, 0, len(present))
		badType []domain.RawRecord
	)
	for _, r := range present {
		budgetStr, _ := r.Value(domain.FieldAnnualBudget)
		area, _ := r.Value(domain.FieldArea)

		budget, err := ParseMoney(budgetStr)
		if err != nil {
			badType = append(badType, r)
			continue
		}

		var year *int
		if ys, ok := r.Value(domain.FieldYear); ok && strings.TrimSpace(ys) != "" {
			y, err := ParseYear(ys)
			if err != nil {
				badType = append(badType, r)
				continue
			}
			year = &y
		}

		valid = append(valid, BudgetCandidate{
			Record: domain.BudgetRecord{
				Area:         area,
				AnnualBudget: budget,
				Year:         year,
				Trace:        r.Trace,
			},
			Raw: r,
		})
	}

	var rejected []Rejected
	rejected = appendRejected(rejected, ReasonMissingField, missing)
	rejected = appendRejected(rejected, ReasonTypeConversion, badType)
	return valid, rejected
}

// RangeValidator rejects expenses whose amount is zero or negative.
type RangeValidator struct{}

// CheckExpenses splits candidates into positive and non-positive amounts.
func (RangeValidator) CheckExpenses(cands []ExpenseCandidate) ([]ExpenseCandidate, []Rejected) {
	kept := make([]ExpenseCandidate, 0, len(cands))
	var bad []domain.RawRecord
	for _, c := range cands {
		if c.Record.Amount.IsPositive() {
			kept = append(kept, c)
		} else {
			bad = append(bad, c.Raw)
		}
	}
	return kept, appendRejected(nil, ReasonNonPositive, bad)
}
