package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentID(t *testing.T) {
	t.Parallel()

	t.Run("prefers document name", func(t *testing.T) {
		t.Parallel()
		r := ExceptionRecord{VendorAccount: "ACME-001", InvoiceNumber: "INV-100", DocumentName: "inv100.pdf"}
		assert.Equal(t, "inv100.pdf", r.DocumentID())
	})

	t.Run("falls back to vendor and invoice", func(t *testing.T) {
		t.Parallel()
		r := ExceptionRecord{VendorAccount: "ACME-001", InvoiceNumber: "INV-100"}
		assert.Equal(t, "ACME-001/INV-100", r.DocumentID())
	})
}

func TestHasIdentity(t *testing.T) {
	t.Parallel()

	assert.True(t, ExceptionRecord{VendorAccount: "A", InvoiceNumber: "B"}.HasIdentity())
	assert.False(t, ExceptionRecord{VendorAccount: "A"}.HasIdentity())
	assert.False(t, ExceptionRecord{InvoiceNumber: "B"}.HasIdentity())
	assert.False(t, ExceptionRecord{}.HasIdentity())
}

func TestVariance(t *testing.T) {
	t.Parallel()

	r := ExceptionRecord{InvoiceTotal: 1250.50, POTotal: 1000.00}
	assert.InDelta(t, 250.50, r.Variance(), 0.001)
}

func TestFixability(t *testing.T) {
	t.Parallel()

	t.Run("fixable types map to their field", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "ship_to", CorrectableField(IncompleteShipping))
		assert.Equal(t, "po_num", CorrectableField(MissingPO))
		assert.True(t, SupportsConfidence(IncompleteShipping))
		assert.True(t, SupportsConfidence(MissingPO))
	})

	t.Run("analysis-only types have no field", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, CorrectableField(AmountMismatch))
		assert.Empty(t, CorrectableField(UnmatchedLines))
		assert.False(t, SupportsConfidence(AmountMismatch))
		assert.Empty(t, CorrectableField(ExceptionType("weird_new_type")))
	})
}

func TestSuggestedFixValue(t *testing.T) {
	t.Parallel()

	fix := &SuggestedFix{Fields: map[string]any{"po_num": "PO-7781", "count": 3}}
	assert.Equal(t, "PO-7781", fix.Value("po_num"))
	assert.Empty(t, fix.Value("count"), "non-string values are not usable as corrections")
	assert.Empty(t, fix.Value("ship_to"))

	var nilFix *SuggestedFix
	assert.Empty(t, nilFix.Value("po_num"))
}

func TestUpdateStatsRecord(t *testing.T) {
	t.Parallel()

	var s UpdateStats
	s.Record(UpdateOutcome{Status: UpdateApplied})
	s.Record(UpdateOutcome{Status: UpdateNoop})
	s.Record(UpdateOutcome{Status: UpdateNotApplied, Reason: "record changed since analysis"})
	s.Record(UpdateOutcome{Status: UpdateError, Reason: "write failed"})

	assert.Equal(t, 1, s.Applied)
	assert.Equal(t, 1, s.Noops)
	assert.Equal(t, 2, s.Failed)
	assert.Len(t, s.NotApplied, 2)
}
