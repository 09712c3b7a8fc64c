package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/exceptions-cli/internal/model"
	"github.com/sells-group/exceptions-cli/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	ctx := context.Background()

	dsn := filepath.Join(t.TempDir(), "serve_test.db")
	st, err := store.Open(ctx, "sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	srv := httptest.NewServer(newServeMux(st))
	t.Cleanup(srv.Close)
	return srv, st
}

func TestServeHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeResults(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	conf := 95
	require.NoError(t, st.SaveAnalysis(ctx, model.AnalysisResult{
		DocumentID:    "ACME-001|INV-100",
		RunID:         "run-1",
		ExceptionType: model.MissingPO,
		Diagnosis:     "purchase order located on page 2",
		Fix: &model.SuggestedFix{
			Fields:     map[string]any{"po_num": "PO-7781"},
			Confidence: &conf,
		},
		Snapshot: model.OriginalSnapshot{
			VendorAccount: "ACME-001",
			InvoiceNumber: "INV-100",
			Field:         "po_num",
		},
		CreatedAt: time.Now().UTC(),
	}))

	resp, err := http.Get(srv.URL + "/results?run=run-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var results []model.AnalysisResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, "run-1", results[0].RunID)
	assert.Equal(t, "PO-7781", results[0].Fix.Value("po_num"))
}

func TestServeResultsRequiresRunParam(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/results")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeStats(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, st.SaveUpdateStats(ctx, model.UpdateStats{
		RunID:      "run-1",
		Planned:    3,
		Applied:    2,
		Noops:      1,
		FinishedAt: time.Now().UTC(),
	}))

	resp, err = http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats model.UpdateStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, "run-1", stats.RunID)
	assert.Equal(t, 2, stats.Applied)
}
