// Package pipeline orchestrates the per-record analysis flow: evidence
// extraction, prompt compilation, paced inference, and response parsing, with
// each result persisted as it is produced.
package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/exceptions-cli/internal/inference"
	"github.com/sells-group/exceptions-cli/internal/model"
	"github.com/sells-group/exceptions-cli/internal/parser"
	"github.com/sells-group/exceptions-cli/internal/store"
)

// SkippedDiagnosis is stored for records that cannot be re-targeted later.
const SkippedDiagnosis = "skipped: missing required fields"

// Evidence extracts supporting document text for one record.
type Evidence interface {
	Extract(ctx context.Context, docName string) model.Extraction
}

// Prompter compiles an exception-specific prompt for one record.
type Prompter interface {
	Compile(rec model.ExceptionRecord, ev model.Extraction, includeEvidence bool) string
}

// Inference runs one model call with rate-limit-aware retries.
type Inference interface {
	Generate(ctx context.Context, promptText, recordID string) inference.Result
}

// Analyzer runs the analysis phase over a batch of exception records.
type Analyzer struct {
	evidence Evidence
	prompts  Prompter
	infer    Inference
	store    store.Store
	pacer    *Pacer
}

// NewAnalyzer creates an Analyzer with all dependencies.
func NewAnalyzer(ev Evidence, prompts Prompter, infer Inference, st store.Store, pacer *Pacer) *Analyzer {
	if pacer == nil {
		pacer = NewPacer(0)
	}
	return &Analyzer{
		evidence: ev,
		prompts:  prompts,
		infer:    infer,
		store:    st,
		pacer:    pacer,
	}
}

// RunSummary aggregates one analysis run.
type RunSummary struct {
	RunID    string                 `json:"run_id"`
	Total    int                    `json:"total"`
	Analyzed int                    `json:"analyzed"`
	Skipped  int                    `json:"skipped"`
	Failed   int                    `json:"failed"`
	Fixes    int                    `json:"fixes"`
	Results  []model.AnalysisResult `json:"results"`
}

type outcome int

const (
	outcomeAnalyzed outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Run analyzes records in order, persisting each result as it is produced.
// Per-record failures are isolated; only store unavailability or context
// cancellation aborts the run, returning the partial summary alongside the
// error.
func (a *Analyzer) Run(ctx context.Context, records []model.ExceptionRecord) (*RunSummary, error) {
	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("analyze: starting run", zap.Int("records", len(records)))

	summary := &RunSummary{RunID: runID, Total: len(records)}
	for _, rec := range records {
		res, out := a.analyzeOne(ctx, rec, runID)

		if err := a.store.SaveAnalysis(ctx, res); err != nil {
			return summary, eris.Wrapf(err, "analyze: save result %s", res.DocumentID)
		}
		summary.Results = append(summary.Results, res)

		switch out {
		case outcomeAnalyzed:
			summary.Analyzed++
		case outcomeSkipped:
			summary.Skipped++
		case outcomeFailed:
			summary.Failed++
		}
		if res.Fix != nil {
			summary.Fixes++
		}

		if ctx.Err() != nil {
			return summary, eris.Wrap(ctx.Err(), "analyze: run canceled")
		}
	}

	log.Info("analyze: run complete",
		zap.Int("total", summary.Total),
		zap.Int("analyzed", summary.Analyzed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("fixes", summary.Fixes),
	)
	return summary, nil
}

func (a *Analyzer) analyzeOne(ctx context.Context, rec model.ExceptionRecord, runID string) (model.AnalysisResult, outcome) {
	res := model.AnalysisResult{
		DocumentID:    rec.DocumentID(),
		RunID:         runID,
		ExceptionType: rec.ExceptionType,
		Snapshot:      snapshotFor(rec),
		CreatedAt:     time.Now().UTC(),
	}
	log := zap.L().With(zap.String("run_id", runID), zap.String("document_id", res.DocumentID))

	if !rec.HasIdentity() {
		log.Warn("analyze: record missing identity keys")
		res.Diagnosis = SkippedDiagnosis
		return res, outcomeSkipped
	}

	ev := a.evidence.Extract(ctx, rec.DocumentName)
	switch {
	case ev.TooLarge:
		log.Info("analyze: document over page cap, skipping inference")
		res.Diagnosis = model.TooLargeSentinel
		return res, outcomeSkipped
	case ev.Failed:
		log.Warn("analyze: evidence extraction failed, skipping inference")
		res.Diagnosis = model.ExtractionFailedSentinel
		return res, outcomeSkipped
	}

	promptText := a.prompts.Compile(rec, ev, true)

	if err := a.pacer.Wait(ctx); err != nil {
		res.Diagnosis = "analysis canceled before inference"
		return res, outcomeFailed
	}

	result := a.infer.Generate(ctx, promptText, res.DocumentID)
	if result.Status != inference.StatusOK {
		log.Warn("analyze: inference did not complete",
			zap.String("status", string(result.Status)),
			zap.String("reason", result.Failure),
		)
		res.Diagnosis = result.Failure
		return res, outcomeFailed
	}

	parsed := parser.Parse(result.Text, res.DocumentID)
	res.Diagnosis = parsed.Diagnosis
	res.Fix = parsed.Fix
	return res, outcomeAnalyzed
}

// snapshotFor captures the identity keys plus the pre-analysis value of the
// field a fix for this exception type would correct.
func snapshotFor(rec model.ExceptionRecord) model.OriginalSnapshot {
	snap := model.OriginalSnapshot{
		VendorAccount: rec.VendorAccount,
		InvoiceNumber: rec.InvoiceNumber,
	}
	if field := model.CorrectableField(rec.ExceptionType); field != "" {
		snap.Field = field
		snap.Value = currentValue(rec, field)
	}
	return snap
}

func currentValue(rec model.ExceptionRecord, field string) string {
	switch field {
	case "ship_to":
		return rec.ShipTo
	case "po_num":
		return rec.PONumber
	}
	return ""
}

// WriteArtifact exports analysis results to a JSON file for inspection or
// transfer between environments.
func WriteArtifact(path string, results []model.AnalysisResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return eris.Wrap(err, "analyze: marshal artifact")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "analyze: write artifact %s", path)
	}
	return nil
}
