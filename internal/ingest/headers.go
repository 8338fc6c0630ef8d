package ingest

import (
	"strings"

	"github.com/dvloznov/budget-etl/internal/domain"
)

// Traceability columns that may already be present in an input table.
const (
	ColIngestTS   = "_ingest_ts"
	ColSourceFile = "_source_file"
	ColBatchID    = "_batch_id"
	ColEventID    = "_event_id"
)

// headerAliases maps the Spanish headers of the finance exports to the
// canonical field names.
var headerAliases = map[string]string{
	"fecha":             domain.FieldDate,
	"partida":           domain.FieldCategory,
	"importe":           domain.FieldAmount,
	"presupuesto_anual": domain.FieldAnnualBudget,
	"año":               domain.FieldYear,
	"anio":              domain.FieldYear,
}

// nullTokens are the cell values read as null, matching the defaults of the
// spreadsheet tooling the inputs are exported with.
var nullTokens = map[string]struct{}{
	"":         {},
	"NA":       {},
	"N/A":      {},
	"n/a":      {},
	"NaN":      {},
	"nan":      {},
	"-NaN":     {},
	"-nan":     {},
	"NULL":     {},
	"null":     {},
	"None":     {},
	"<NA>":     {},
	"#N/A":     {},
	"#NA":      {},
	"1.#IND":   {},
	"-1.#IND":  {},
	"1.#QNAN":  {},
	"-1.#QNAN": {},
	"#N/A N/A": {},
}

// CanonicalHeader trims a header, lower-cases it and resolves aliases.
func CanonicalHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return h
}

// IsNull reports whether a raw cell value stands for a missing value.
func IsNull(v string) bool {
	_, ok := nullTokens[v]
	return ok
}
