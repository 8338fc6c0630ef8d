package cleaning

import (
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/budget-etl/internal/domain"
)

var (
	t1 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 = t1.Add(time.Hour)
)

// rawExpense builds an expense row. An empty string becomes a null cell.
func rawExpense(row int, ts time.Time, date, area, category, amount string) domain.RawRecord {
	return rawRecord(row, ts, map[string]string{
		domain.FieldDate:     date,
		domain.FieldArea:     area,
		domain.FieldCategory: category,
		domain.FieldAmount:   amount,
	})
}

func rawBudget(row int, area, budget, year string) domain.RawRecord {
	return rawRecord(row, t1, map[string]string{
		domain.FieldArea:         area,
		domain.FieldAnnualBudget: budget,
		domain.FieldYear:         year,
	})
}

func rawRecord(row int, ts time.Time, values map[string]string) domain.RawRecord {
	fields := make(map[string]*string, len(values))
	for k, v := range values {
		if v == "" {
			fields[k] = nil
			continue
		}
		v := v
		fields[k] = &v
	}
	return domain.RawRecord{
		Fields: fields,
		Trace: domain.Trace{
			IngestTS:   ts,
			SourceFile: "gastos.csv",
			BatchID:    "20240301_090000",
			EventID:    uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(row)}),
			Row:        row,
		},
	}
}
