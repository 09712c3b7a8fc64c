package model

import "time"

// UpdatePlanItem is a confidence-gated candidate write derived from a durable
// AnalysisResult. Read-only after planning.
type UpdatePlanItem struct {
	VendorAccount string        `json:"vendor_account"`
	InvoiceNumber string        `json:"invoice_number"`
	ExceptionType ExceptionType `json:"exception_type"`
	Field         string        `json:"field"`
	OldValue      string        `json:"old_value"`
	NewValue      string        `json:"new_value"`
	Confidence    int           `json:"confidence"`
}

// UpdateStatus classifies the outcome of one guarded write.
type UpdateStatus string

const (
	// UpdateApplied means the guarded filter matched and the row changed.
	UpdateApplied UpdateStatus = "applied"
	// UpdateNoop means the filter matched but the value already equaled the target.
	UpdateNoop UpdateStatus = "noop"
	// UpdateNotApplied means no row matched; the record changed incompatibly
	// since analysis.
	UpdateNotApplied UpdateStatus = "not_applied"
	// UpdateError means the write itself failed.
	UpdateError UpdateStatus = "error"
)

// UpdateOutcome is the per-item result of a guarded write.
type UpdateOutcome struct {
	Item   UpdatePlanItem `json:"item"`
	Status UpdateStatus   `json:"status"`
	Reason string         `json:"reason,omitempty"`
}

// UpdateStats aggregates a full update run.
type UpdateStats struct {
	RunID      string          `json:"run_id"`
	Planned    int             `json:"planned"`
	Applied    int             `json:"applied"`
	Noops      int             `json:"noops"`
	Failed     int             `json:"failed"`
	NotApplied []UpdateOutcome `json:"not_applied,omitempty"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Record folds one outcome into the run statistics.
func (s *UpdateStats) Record(o UpdateOutcome) {
	switch o.Status {
	case UpdateApplied:
		s.Applied++
	case UpdateNoop:
		s.Noops++
	case UpdateNotApplied, UpdateError:
		s.Failed++
		s.NotApplied = append(s.NotApplied, o)
	}
}
