package cleaning

import (
	"time"

	"github.com/dvloznov/budget-etl/internal/domain"
)

// Router collects rejected rows across every stage of both tables.
type Router struct {
	now     func() time.Time
	batches [][]domain.QuarantinedRecord
}

// NewRouter creates a router stamping captures with now.
func NewRouter(now func() time.Time) *Router {
	if now == nil {
		now = time.Now
	}
	return &Router{now: now}
}

// Capture tags raws with table and reason and stores them as one batch.
// Every record of a batch shares the same capture timestamp.
func (r *Router) Capture(table, reason string, raws []domain.RawRecord) {
	if len(raws) == 0 {
		return
	}
	ts := r.now()
	batch := make([]domain.QuarantinedRecord, 0, len(raws))
	for _, raw := range raws {
		batch = append(batch, domain.QuarantinedRecord{
			Table:        table,
			Fields:       raw.Fields,
			Reason:       reason,
			QuarantineTS: ts,
			Trace:        raw.Trace,
		})
	}
	r.batches = append(r.batches, batch)
}

// CaptureAll stores every rejected group of a stage.
func (r *Router) CaptureAll(table string, rejected []Rejected) {
	for _, rj := range rejected {
		r.Capture(table, rj.Reason, rj.Records)
	}
}

// Records concatenates all captured batches in capture order. It is empty
// when nothing was rejected.
func (r *Router) Records() []domain.QuarantinedRecord {
	var out []domain.QuarantinedRecord
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

// Len returns the number of quarantined records.
func (r *Router) Len() int {
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

// CountByReason returns the number of quarantined records per reason.
func (r *Router) CountByReason() map[string]int {
	counts := make(map[string]int)
	for _, b := range r.batches {
		for _, q := range b {
			counts[q.Reason]++
		}
	}
	return counts
}
