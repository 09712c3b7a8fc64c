// Package store persists exception records, analysis results, and update run
// statistics behind a driver-selectable interface.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/exceptions-cli/internal/model"
)

// Filter narrows which exception records an analysis run considers.
type Filter struct {
	ExceptionType model.ExceptionType `json:"exception_type,omitempty"`
	Status        string              `json:"status,omitempty"`
	VendorAccount string              `json:"vendor_account,omitempty"`
	Limit         int                 `json:"limit,omitempty"`
}

// CorrectionWrite describes one guarded conditional update. The write only
// lands when the row still matches the identity keys, exception type, and
// status it had at analysis time, and the target field is either empty or
// still holds the snapshot value.
type CorrectionWrite struct {
	VendorAccount string
	InvoiceNumber string
	ExceptionType model.ExceptionType
	Status        string
	Field         string
	NewValue      string
	SnapshotValue string
}

// Store defines the persistence interface for the exception resolution pipeline.
type Store interface {
	// Exception records
	QueryExceptions(ctx context.Context, filter Filter) ([]model.ExceptionRecord, error)
	ImportExceptions(ctx context.Context, records []model.ExceptionRecord) (int64, error)

	// ApplyCorrection executes one guarded write. matched counts rows that
	// satisfied the guard filter, modified counts rows actually changed;
	// matched > 0 with modified == 0 means the value was already in place.
	ApplyCorrection(ctx context.Context, w CorrectionWrite) (matched, modified int64, err error)

	// Analysis artifacts
	SaveAnalysis(ctx context.Context, res model.AnalysisResult) error
	ListAnalyses(ctx context.Context, runID string) ([]model.AnalysisResult, error)

	// Update run statistics
	SaveUpdateStats(ctx context.Context, stats model.UpdateStats) error
	LatestUpdateStats(ctx context.Context) (*model.UpdateStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// correctableColumns whitelists the invoice columns a guarded write may touch.
// Field names arrive from model output and are never interpolated directly.
var correctableColumns = map[string]string{
	"ship_to": "ship_to",
	"po_num":  "po_num",
}

// columnFor resolves a correctable field name to its column, rejecting
// anything outside the whitelist.
func columnFor(field string) (string, error) {
	col, ok := correctableColumns[field]
	if !ok {
		return "", eris.Errorf("store: field not correctable: %q", field)
	}
	return col, nil
}

// Open selects and connects a store driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	case "sqlite":
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver: %q", driver)
	}
}
