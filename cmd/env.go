package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/exceptions-cli/internal/blob"
	"github.com/sells-group/exceptions-cli/internal/evidence"
	"github.com/sells-group/exceptions-cli/internal/inference"
	"github.com/sells-group/exceptions-cli/internal/pipeline"
	"github.com/sells-group/exceptions-cli/internal/prompt"
	"github.com/sells-group/exceptions-cli/internal/store"
	anthropicpkg "github.com/sells-group/exceptions-cli/pkg/anthropic"
)

// openStore connects the configured store driver and ensures the schema
// exists. Callers should defer Close.
func openStore(ctx context.Context) (store.Store, error) {
	dsn := cfg.Store.DatabaseURL
	if cfg.Store.Driver == "sqlite" && dsn == "" {
		dsn = "exceptions.db"
	}
	if cfg.Store.Driver == "postgres" && dsn == "" {
		return nil, eris.New("store.database_url is required for the postgres driver")
	}

	st, err := store.Open(ctx, cfg.Store.Driver, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initAnalyzer wires the full analysis pipeline: blob storage, evidence
// extraction, prompt compilation, and the paced inference client.
func initAnalyzer(st store.Store) (*pipeline.Analyzer, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic.key is required for analysis")
	}

	blobStore, err := blob.NewStore(cfg.Blob)
	if err != nil {
		return nil, err
	}

	recognizer, err := evidence.NewRecognizer(cfg.OCR)
	if err != nil {
		return nil, err
	}
	renderer := evidence.NewPoppler(cfg.OCR.PdfInfoPath, cfg.OCR.PdfToPpmPath)
	extractor := evidence.NewExtractor(blobStore, renderer, recognizer,
		cfg.Pipeline.PageCap, cfg.Pipeline.MaxEvidenceChars)

	prompts, err := prompt.NewCompiler(cfg.Pipeline.TemplatesFile)
	if err != nil {
		return nil, err
	}

	aiClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	inferClient := inference.NewClient(aiClient, cfg.Anthropic)
	pacer := pipeline.NewPacer(time.Duration(cfg.Pipeline.InferenceDelaySecs) * time.Second)

	return pipeline.NewAnalyzer(extractor, prompts, inferClient, st, pacer), nil
}
