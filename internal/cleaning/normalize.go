package cleaning

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dvloznov/budget-etl/internal/domain"
)

// Normalizer maps area and category labels onto the canonical vocabulary.
// It has no state besides its vocabulary.
type Normalizer struct {
	vocab     Vocabulary
	canonical map[string]struct{}
}

// NewNormalizer builds a normalizer over a copy of vocab.
func NewNormalizer(vocab Vocabulary) *Normalizer {
	n := &Normalizer{
		vocab: Vocabulary{
			AreaAliases:     copyMap(vocab.AreaAliases),
			CategoryAliases: copyMap(vocab.CategoryAliases),
			CanonicalAreas:  append([]string(nil), vocab.CanonicalAreas...),
		},
		canonical: make(map[string]struct{}, len(vocab.CanonicalAreas)),
	}
	for _, a := range vocab.CanonicalAreas {
		n.canonical[a] = struct{}{}
	}
	return n
}

// Canonical resolves s through aliases, then title-cases the result.
func Canonical(s string, aliases map[string]string) string {
	s = strings.TrimSpace(s)
	if alias, ok := aliases[s]; ok {
		s = alias
	}
	// cases.Caser is stateful, so one per call.
	return cases.Title(language.Und).String(s)
}

// Area returns the canonical form of an area label.
func (n *Normalizer) Area(s string) string {
	return Canonical(s, n.vocab.AreaAliases)
}

// Category returns the canonical form of a category label.
func (n *Normalizer) Category(s string) string {
	return Canonical(s, n.vocab.CategoryAliases)
}

// IsCanonicalArea reports membership in the closed area set.
func (n *Normalizer) IsCanonicalArea(area string) bool {
	_, ok := n.canonical[area]
	return ok
}

// CanonicalAreas returns the closed area set in configured order.
func (n *Normalizer) CanonicalAreas() []string {
	return append([]string(nil), n.vocab.CanonicalAreas...)
}

// NormalizeExpenses rewrites area and category. Expenses whose area falls
// outside the canonical set are rejected.
func (n *Normalizer) NormalizeExpenses(cands []ExpenseCandidate) ([]ExpenseCandidate, []Rejected) {
	kept := make([]ExpenseCandidate, 0, len(cands))
	var bad []domain.RawRecord
	for _, c := range cands {
		c.Record.Area = n.Area(c.Record.Area)
		c.Record.Category = n.Category(c.Record.Category)
		if !n.IsCanonicalArea(c.Record.Area) {
			bad = append(bad, c.Raw)
			continue
		}
		kept = append(kept, c)
	}
	return kept, appendRejected(nil, ReasonUnrecognizedArea, bad)
}

// NormalizeBudgets rewrites the area of each budget and rejects unknown areas.
func (n *Normalizer) NormalizeBudgets(cands []BudgetCandidate) ([]BudgetCandidate, []Rejected) {
	kept := make([]BudgetCandidate, 0, len(cands))
	var bad []domain.RawRecord
	for _, c := range cands {
		c.Record.Area = n.Area(c.Record.Area)
		if !n.IsCanonicalArea(c.Record.Area) {
			bad = append(bad, c.Raw)
			continue
		}
		kept = append(kept, c)
	}
	return kept, appendRejected(nil, ReasonUnrecognizedArea, bad)
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
