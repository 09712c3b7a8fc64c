package model

// ExceptionType categorizes why an invoice is blocked from normal processing.
type ExceptionType string

const (
	// MissingPO marks invoices with no purchase-order link.
	MissingPO ExceptionType = "missing_po"
	// AmountMismatch marks invoices whose total disagrees with the PO amount.
	AmountMismatch ExceptionType = "amount_mismatch"
	// UnmatchedLines marks invoices with line items that could not be matched.
	UnmatchedLines ExceptionType = "unmatched_lines"
	// IncompleteShipping marks invoices with missing or partial ship-to data.
	IncompleteShipping ExceptionType = "incomplete_shipping"
)

// ExceptionRecord is an immutable snapshot of a blocked invoice at query time.
// It is owned by the analyzer for the duration of one run and never mutated.
type ExceptionRecord struct {
	VendorAccount  string        `json:"vendor_account"`
	InvoiceNumber  string        `json:"invoice_number"`
	ExceptionType  ExceptionType `json:"exception_type"`
	Status         string        `json:"status"`
	ShipTo         string        `json:"ship_to,omitempty"`
	PONumber       string        `json:"po_num,omitempty"`
	InvoiceTotal   float64       `json:"invoice_total,omitempty"`
	POTotal        float64       `json:"po_total,omitempty"`
	DocumentName   string        `json:"document_name"`
}

// DocumentID is the stable key an AnalysisResult is stored under. It falls
// back to vendor+invoice when the record carries no document reference.
func (r ExceptionRecord) DocumentID() string {
	if r.DocumentName != "" {
		return r.DocumentName
	}
	return r.VendorAccount + "/" + r.InvoiceNumber
}

// Variance returns the invoice-vs-PO amount difference. Only meaningful for
// amount mismatch exceptions; zero otherwise.
func (r ExceptionRecord) Variance() float64 {
	return r.InvoiceTotal - r.POTotal
}

// HasIdentity reports whether the record carries the keys required to
// re-target it for a later guarded update.
func (r ExceptionRecord) HasIdentity() bool {
	return r.VendorAccount != "" && r.InvoiceNumber != ""
}

// fixability describes whether an exception type supports a structured
// correction, and to which record field the correction applies.
type fixability struct {
	Field      string
	Confidence bool
}

var fixableTypes = map[ExceptionType]fixability{
	IncompleteShipping: {Field: "ship_to", Confidence: true},
	MissingPO:          {Field: "po_num", Confidence: true},
}

// CorrectableField returns the record field a suggested fix for the given
// exception type may correct, or "" when the type is analysis-only.
func CorrectableField(t ExceptionType) string {
	return fixableTypes[t].Field
}

// SupportsConfidence reports whether the exception type's fix protocol
// carries a self-reported confidence score.
func SupportsConfidence(t ExceptionType) bool {
	return fixableTypes[t].Confidence
}
