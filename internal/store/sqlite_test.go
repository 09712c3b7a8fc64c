package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/exceptions-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedRecord(t *testing.T, s *SQLiteStore, r model.ExceptionRecord) {
	t.Helper()
	n, err := s.ImportExceptions(context.Background(), []model.ExceptionRecord{r})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestSQLiteStore_ImportAndQuery(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	records := []model.ExceptionRecord{
		{VendorAccount: "ACME-001", InvoiceNumber: "INV-1001", ExceptionType: model.MissingPO, Status: "open", DocumentName: "inv_1001.pdf"},
		{VendorAccount: "ACME-001", InvoiceNumber: "INV-1002", ExceptionType: model.IncompleteShipping, Status: "open"},
		{VendorAccount: "BOLT-77", InvoiceNumber: "INV-0042", ExceptionType: model.MissingPO, Status: "closed"},
	}
	n, err := s.ImportExceptions(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := s.QueryExceptions(ctx, Filter{ExceptionType: model.MissingPO, Status: "open"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "INV-1001", got[0].InvoiceNumber)
	assert.Equal(t, "inv_1001.pdf", got[0].DocumentName)

	// Re-import updates in place rather than failing on the primary key.
	records[0].Status = "closed"
	_, err = s.ImportExceptions(ctx, records[:1])
	require.NoError(t, err)

	got, err = s.QueryExceptions(ctx, Filter{VendorAccount: "ACME-001", Status: "closed"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "INV-1001", got[0].InvoiceNumber)
}

func TestSQLiteStore_ApplyCorrection_Applied(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedRecord(t, s, model.ExceptionRecord{
		VendorAccount: "ACME-001", InvoiceNumber: "INV-1001",
		ExceptionType: model.MissingPO, Status: "open",
	})

	matched, modified, err := s.ApplyCorrection(ctx, CorrectionWrite{
		VendorAccount: "ACME-001", InvoiceNumber: "INV-1001",
		ExceptionType: model.MissingPO, Status: "open",
		Field: "po_num", NewValue: "PO-991",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)
	assert.Equal(t, int64(1), modified)

	got, err := s.QueryExceptions(ctx, Filter{VendorAccount: "ACME-001"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "PO-991", got[0].PONumber)
}

func TestSQLiteStore_ApplyCorrection_NoopWhenAlreadySet(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedRecord(t, s, model.ExceptionRecord{
		VendorAccount: "ACME-001", InvoiceNumber: "INV-1001",
		ExceptionType: model.MissingPO, Status: "open", PONumber: "PO-991",
	})

	// Snapshot matches the current value, so the guard passes, but the target
	// value is already in place.
	matched, modified, err := s.ApplyCorrection(ctx, CorrectionWrite{
		VendorAccount: "ACME-001", InvoiceNumber: "INV-1001",
		ExceptionType: model.MissingPO, Status: "open",
		Field: "po_num", NewValue: "PO-991", SnapshotValue: "PO-991",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)
	assert.Equal(t, int64(0), modified)
}

func TestSQLiteStore_ApplyCorrection_GuardBlocksDriftedRecord(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	// The field changed since analysis: current value differs from both empty
	// and the snapshot value. The write must not land.
	seedRecord(t, s, model.ExceptionRecord{
		VendorAccount: "ACME-001", InvoiceNumber: "INV-1001",
		ExceptionType: model.IncompleteShipping, Status: "open", ShipTo: "9 Harbor Rd",
	})

	matched, modified, err := s.ApplyCorrection(ctx, CorrectionWrite{
		VendorAccount: "ACME-001", InvoiceNumber: "INV-1001",
		ExceptionType: model.IncompleteShipping, Status: "open",
		Field: "ship_to", NewValue: "12 Dock St", SnapshotValue: "",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), matched)
	assert.Equal(t, int64(0), modified)

	got, err := s.QueryExceptions(ctx, Filter{VendorAccount: "ACME-001"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "9 Harbor Rd", got[0].ShipTo)
}

func TestSQLiteStore_ApplyCorrection_GuardChecksStatus(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	seedRecord(t, s, model.ExceptionRecord{
		VendorAccount: "ACME-001", InvoiceNumber: "INV-1001",
		ExceptionType: model.MissingPO, Status: "closed",
	})

	matched, _, err := s.ApplyCorrection(ctx, CorrectionWrite{
		VendorAccount: "ACME-001", InvoiceNumber: "INV-1001",
		ExceptionType: model.MissingPO, Status: "open",
		Field: "po_num", NewValue: "PO-991",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), matched)
}

func TestSQLiteStore_AnalysisRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	conf := 92
	first := model.AnalysisResult{
		RunID:         "run-1",
		DocumentID:    "inv_1001.pdf",
		ExceptionType: model.MissingPO,
		Diagnosis:     "Invoice references order ORD-5512 but carries no PO number.",
		Fix: &model.SuggestedFix{
			Fields:     map[string]any{"po_num": "PO-991"},
			Confidence: &conf,
		},
		Snapshot:  model.OriginalSnapshot{VendorAccount: "ACME-001", InvoiceNumber: "INV-1001", Field: "po_num"},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	second := model.AnalysisResult{
		RunID:         "run-1",
		DocumentID:    "inv_1002.pdf",
		ExceptionType: model.AmountMismatch,
		Diagnosis:     "Freight surcharge on page 1 explains the variance.",
		Snapshot:      model.OriginalSnapshot{VendorAccount: "ACME-001", InvoiceNumber: "INV-1002"},
		CreatedAt:     time.Now().UTC().Truncate(time.Second).Add(time.Second),
	}

	require.NoError(t, s.SaveAnalysis(ctx, first))
	require.NoError(t, s.SaveAnalysis(ctx, second))

	results, err := s.ListAnalyses(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "inv_1001.pdf", results[0].DocumentID)
	require.NotNil(t, results[0].Fix)
	assert.Equal(t, "PO-991", results[0].Fix.Value("po_num"))
	require.NotNil(t, results[0].Fix.Confidence)
	assert.Equal(t, 92, *results[0].Fix.Confidence)
	assert.Equal(t, "po_num", results[0].Snapshot.Field)

	assert.Equal(t, "inv_1002.pdf", results[1].DocumentID)
	assert.Nil(t, results[1].Fix)

	// Saving the same document again replaces the earlier artifact.
	first.Diagnosis = "revised"
	require.NoError(t, s.SaveAnalysis(ctx, first))
	results, err = s.ListAnalyses(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "revised", results[0].Diagnosis)
}

func TestSQLiteStore_UpdateStatsRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	empty, err := s.LatestUpdateStats(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	older := model.UpdateStats{RunID: "run-1", Planned: 2, Applied: 2, FinishedAt: time.Now().UTC().Add(-time.Hour)}
	newer := model.UpdateStats{RunID: "run-2", Planned: 3, Applied: 1, Noops: 1, Failed: 1, FinishedAt: time.Now().UTC()}
	require.NoError(t, s.SaveUpdateStats(ctx, older))
	require.NoError(t, s.SaveUpdateStats(ctx, newer))

	latest, err := s.LatestUpdateStats(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-2", latest.RunID)
	assert.Equal(t, 1, latest.Applied)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
