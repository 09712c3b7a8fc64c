package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DiagnosisAndFix(t *testing.T) {
	got := Parse("Missing PO.\nSUGGESTED_FIX_DATA: {\"po_num\": \"PO-991\"}", "r")

	assert.Equal(t, "Missing PO.", got.Diagnosis)
	require.NotNil(t, got.Fix)
	assert.Equal(t, "PO-991", got.Fix.Value("po_num"))
	assert.Nil(t, got.Fix.Confidence)
}

func TestParse_ConfidenceExtracted(t *testing.T) {
	raw := "Ship-to found on document.\nSUGGESTED_FIX_DATA: {\"ship_to\": \"12 Oak St, Springfield\", \"confidence\": 95}"
	got := Parse(raw, "r")

	require.NotNil(t, got.Fix)
	require.NotNil(t, got.Fix.Confidence)
	assert.Equal(t, 95, *got.Fix.Confidence)
	assert.Equal(t, "12 Oak St, Springfield", got.Fix.Value("ship_to"))
	// Confidence is metadata, not a proposed field value.
	_, present := got.Fix.Fields["confidence"]
	assert.False(t, present)
}

func TestParse_NoMarker(t *testing.T) {
	got := Parse("The invoice total includes freight charges not on the PO.", "r")

	assert.Equal(t, "The invoice total includes freight charges not on the PO.", got.Diagnosis)
	assert.Nil(t, got.Fix)
}

func TestParse_DiagnosisNeverIncludesTextAfterMarker(t *testing.T) {
	got := Parse("Diagnosis here.\nSUGGESTED_FIX_DATA: {\"po_num\": \"PO-1\"}\ntrailing chatter", "r")

	assert.Equal(t, "Diagnosis here.", got.Diagnosis)
	assert.NotContains(t, got.Diagnosis, "PO-1")
	assert.NotContains(t, got.Diagnosis, "trailing")
}

func TestParse_ConversationalWrapping(t *testing.T) {
	raw := "Found it.\nSUGGESTED_FIX_DATA: Sure! Here is the fix:\n```json\n{\"po_num\": \"PO-7\", \"confidence\": 91}\n```\nLet me know if you need more."
	got := Parse(raw, "r")

	assert.Equal(t, "Found it.", got.Diagnosis)
	require.NotNil(t, got.Fix)
	assert.Equal(t, "PO-7", got.Fix.Value("po_num"))
}

func TestParse_BadPayloadKeepsDiagnosis(t *testing.T) {
	got := Parse("Good diagnosis.\nSUGGESTED_FIX_DATA: {not valid json}", "r")

	assert.Equal(t, "Good diagnosis.", got.Diagnosis)
	assert.Nil(t, got.Fix)
}

func TestParse_MarkerWithoutBraces(t *testing.T) {
	got := Parse("Diag.\nSUGGESTED_FIX_DATA: none applicable", "r")

	assert.Equal(t, "Diag.", got.Diagnosis)
	assert.Nil(t, got.Fix)
}

func TestParse_NonNumericConfidenceDropped(t *testing.T) {
	got := Parse("D.\nSUGGESTED_FIX_DATA: {\"ship_to\": \"x\", \"confidence\": \"high\"}", "r")

	require.NotNil(t, got.Fix)
	assert.Nil(t, got.Fix.Confidence)
	assert.Equal(t, "x", got.Fix.Value("ship_to"))
}

func TestParse_MarkerAtStart(t *testing.T) {
	got := Parse("SUGGESTED_FIX_DATA: {\"po_num\": \"PO-2\"}", "r")

	assert.Equal(t, "", got.Diagnosis)
	require.NotNil(t, got.Fix)
}
