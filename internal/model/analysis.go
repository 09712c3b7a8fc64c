package model

import "time"

// Extraction is the outcome of pulling text from a supporting document. It is
// one of: bounded plain text, a too-large sentinel, or a failure sentinel.
// Transient; produced and consumed within one record's processing.
type Extraction struct {
	Text     string
	TooLarge bool
	Failed   bool
}

// TooLargeSentinel is the diagnosis text stored when a document exceeds the
// page cap. It is also injected verbatim into prompts so the model (and the
// log) can explain the missing evidence.
const TooLargeSentinel = "evidence exceeds page cap; document not processed"

// ExtractionFailedSentinel is stored when extraction tooling failed. Distinct
// from TooLargeSentinel: too-large is a business signal, this is operational.
const ExtractionFailedSentinel = "evidence extraction failed"

// Ok reports whether the extraction produced usable text.
func (e Extraction) Ok() bool {
	return !e.TooLarge && !e.Failed
}

// SuggestedFix is a structured correction proposed by the model. Fields maps
// record field name to proposed value. Confidence is the model's self-reported
// 0-100 score; nil when the exception type does not score confidence or the
// model omitted it.
type SuggestedFix struct {
	Fields     map[string]any `json:"fields"`
	Confidence *int           `json:"confidence,omitempty"`
}

// Value returns the proposed value for a field as a string, or "" when the
// fix does not cover that field or the value is not textual.
func (f *SuggestedFix) Value(field string) string {
	if f == nil {
		return ""
	}
	s, _ := f.Fields[field].(string)
	return s
}

// OriginalSnapshot captures the minimal state needed to safely re-target an
// update after analysis: identity keys plus the pre-analysis value of the
// field a fix would correct.
type OriginalSnapshot struct {
	VendorAccount string `json:"vendor_account"`
	InvoiceNumber string `json:"invoice_number"`
	Field         string `json:"field,omitempty"`
	Value         string `json:"value,omitempty"`
}

// AnalysisResult is the durable per-record artifact of one analysis run.
// Created once by the analyzer and never mutated afterwards.
type AnalysisResult struct {
	DocumentID    string           `json:"document_id"`
	RunID         string           `json:"run_id"`
	ExceptionType ExceptionType    `json:"exception_type"`
	Diagnosis     string           `json:"diagnosis"`
	Fix           *SuggestedFix    `json:"suggested_fix,omitempty"`
	Snapshot      OriginalSnapshot `json:"original_snapshot"`
	CreatedAt     time.Time        `json:"created_at"`
}
