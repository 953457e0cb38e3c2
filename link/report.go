package link

import (
	"sort"
	"time"
)

// FieldStats counts what happened for one property during a run
type FieldStats struct {
	Found   int `json:"found"`   // ids discovered for the first time
	Added   int `json:"added"`   // membership written
	Skipped int `json:"skipped"` // already a member
	Errors  int `json:"errors"`  // fetch or replace failed
}

func (s *FieldStats) record(outcome Outcome) {
	switch outcome {
	case OutcomeAdded:
		s.Added++
	case OutcomeAlreadyPresent:
		s.Skipped++
	default:
		s.Errors++
	}
}

// Report summarises one coordinator run
type Report struct {
	RunID         string                 `json:"run_id"`
	SourceItemSet *int64                 `json:"source_item_set,omitempty"`
	Targets       map[string]int64       `json:"targets"`
	Fields        map[string]*FieldStats `json:"fields"`
	Pages         int                    `json:"pages"`
	Items         int                    `json:"items"`
	StartedAt     time.Time              `json:"started_at"`
	FinishedAt    time.Time              `json:"finished_at"`
	Interrupted   bool                   `json:"interrupted,omitempty"` // stopped early by cancellation or a page failure
}

func newReport(runID string, req Request) *Report {
	r := &Report{
		RunID:         runID,
		SourceItemSet: req.SourceItemSet,
		Targets:       make(map[string]int64, len(req.Targets)),
		Fields:        make(map[string]*FieldStats, len(req.Targets)),
		StartedAt:     time.Now(),
	}
	for field, itemSet := range req.Targets {
		r.Targets[field] = itemSet
		r.Fields[field] = &FieldStats{}
	}
	return r
}

// Field returns the stats for one property, zero when unknown
func (r *Report) Field(name string) FieldStats {
	if s, ok := r.Fields[name]; ok {
		return *s
	}
	return FieldStats{}
}

// FieldNames returns the reported properties in sorted order
func (r *Report) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Totals sums the stats over all properties
func (r *Report) Totals() FieldStats {
	var total FieldStats
	for _, s := range r.Fields {
		total.Found += s.Found
		total.Added += s.Added
		total.Skipped += s.Skipped
		total.Errors += s.Errors
	}
	return total
}

// Duration returns how long the run took
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
