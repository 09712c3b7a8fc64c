// Package evidence turns a supporting-document reference into bounded plain
// text for prompt context, or a sentinel when the document cannot inform the
// analysis.
package evidence

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/exceptions-cli/internal/config"
)

// Renderer inspects a document and rasterizes single pages.
type Renderer interface {
	PageCount(ctx context.Context, pdfPath string) (int, error)
	RenderPage(ctx context.Context, pdfPath string, page int, outPath string) error
}

// Recognizer extracts text from a rasterized page image.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// NewRecognizer creates a Recognizer based on config.
func NewRecognizer(cfg config.OCRConfig) (Recognizer, error) {
	switch cfg.Provider {
	case "local", "":
		return NewTesseract(cfg.TesseractPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("evidence: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("evidence: unknown ocr provider %q", cfg.Provider)
	}
}
