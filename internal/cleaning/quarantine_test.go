package cleaning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-etl/internal/domain"
)

func stepClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestRouter_CaptureOrderAndTimestamps(t *testing.T) {
	r := NewRouter(stepClock(t1))

	r.Capture(domain.TableExpenses, ReasonMissingField, []domain.RawRecord{
		rawExpense(1, t1, "", "Ventas", "Salarios", "1"),
		rawExpense(2, t1, "2024-03-01", "", "Salarios", "1"),
	})
	r.Capture(domain.TableBudgets, ReasonTypeConversion, nil)
	r.Capture(domain.TableBudgets, ReasonUnrecognizedArea, []domain.RawRecord{
		rawBudget(7, "Legal", "10", "2024"),
	})

	recs := r.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, 3, r.Len())

	assert.Equal(t, domain.TableExpenses, recs[0].Table)
	assert.Equal(t, ReasonMissingField, recs[0].Reason)
	assert.Equal(t, recs[0].QuarantineTS, recs[1].QuarantineTS, "one timestamp per captured batch")
	assert.Equal(t, domain.TableBudgets, recs[2].Table)
	assert.True(t, recs[2].QuarantineTS.After(recs[1].QuarantineTS))
	assert.Equal(t, 7, recs[2].Row)

	assert.Equal(t, map[string]int{ReasonMissingField: 2, ReasonUnrecognizedArea: 1}, r.CountByReason())
}

func TestRouter_Empty(t *testing.T) {
	r := NewRouter(nil)
	assert.Empty(t, r.Records())
	assert.Zero(t, r.Len())
	assert.Empty(t, r.CountByReason())
}
