package evidence

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/exceptions-cli/internal/blob"
	"github.com/sells-group/exceptions-cli/internal/model"
)

// Extractor fetches a record's supporting document and extracts page-1 text.
type Extractor struct {
	blob       blob.Store
	renderer   Renderer
	recognizer Recognizer
	pageCap    int
	maxChars   int
}

// NewExtractor wires an Extractor. pageCap and maxChars fall back to 3 and
// 8000 when non-positive.
func NewExtractor(store blob.Store, renderer Renderer, recognizer Recognizer, pageCap, maxChars int) *Extractor {
	if pageCap <= 0 {
		pageCap = 3
	}
	if maxChars <= 0 {
		maxChars = 8000
	}
	return &Extractor{
		blob:       store,
		renderer:   renderer,
		recognizer: recognizer,
		pageCap:    pageCap,
		maxChars:   maxChars,
	}
}

// Extract produces bounded plain text for the named document, the too-large
// sentinel when its page count exceeds the cap, or the failure sentinel when
// tooling breaks. Temp artifacts are scoped to the call and removed on every
// exit path.
//
// The page count is checked before any render or recognition work so that an
// oversized document costs one pdfinfo call and nothing more.
func (e *Extractor) Extract(ctx context.Context, docName string) model.Extraction {
	data, err := e.blob.Fetch(ctx, docName)
	if err != nil {
		zap.L().Warn("evidence: document fetch failed",
			zap.String("document", docName),
			zap.Error(err),
		)
		return model.Extraction{Failed: true}
	}

	tmpDir, err := os.MkdirTemp("", "evidence-*")
	if err != nil {
		zap.L().Warn("evidence: create temp dir failed", zap.Error(err))
		return model.Extraction{Failed: true}
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		zap.L().Warn("evidence: stage document failed",
			zap.String("document", docName),
			zap.Error(err),
		)
		return model.Extraction{Failed: true}
	}

	pages, err := e.renderer.PageCount(ctx, pdfPath)
	if err != nil {
		zap.L().Warn("evidence: page count failed",
			zap.String("document", docName),
			zap.Error(err),
		)
		return model.Extraction{Failed: true}
	}

	if pages > e.pageCap {
		zap.L().Info("evidence: document exceeds page cap",
			zap.String("document", docName),
			zap.Int("pages", pages),
			zap.Int("cap", e.pageCap),
		)
		return model.Extraction{TooLarge: true}
	}

	imgPath := filepath.Join(tmpDir, "page1.png")
	if err := e.renderer.RenderPage(ctx, pdfPath, 1, imgPath); err != nil {
		zap.L().Warn("evidence: render failed",
			zap.String("document", docName),
			zap.Error(err),
		)
		return model.Extraction{Failed: true}
	}

	text, err := e.recognizer.Recognize(ctx, imgPath)
	if err != nil {
		zap.L().Warn("evidence: recognition failed",
			zap.String("document", docName),
			zap.Error(err),
		)
		return model.Extraction{Failed: true}
	}

	text = strings.TrimSpace(text)
	if len(text) > e.maxChars {
		text = text[:e.maxChars]
	}
	return model.Extraction{Text: text}
}
