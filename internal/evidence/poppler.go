package evidence

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Poppler renders PDFs using the poppler CLI tools (pdfinfo, pdftoppm).
type Poppler struct {
	pdfInfoPath  string
	pdfToPpmPath string
}

// NewPoppler creates a Poppler renderer. Empty paths fall back to the tool
// names resolved from PATH.
func NewPoppler(pdfInfoPath, pdfToPpmPath string) *Poppler {
	if pdfInfoPath == "" {
		pdfInfoPath = "pdfinfo"
	}
	if pdfToPpmPath == "" {
		pdfToPpmPath = "pdftoppm"
	}
	return &Poppler{pdfInfoPath: pdfInfoPath, pdfToPpmPath: pdfToPpmPath}
}

// PageCount runs pdfinfo and parses the Pages line.
func (p *Poppler) PageCount(ctx context.Context, pdfPath string) (int, error) {
	cmd := exec.CommandContext(ctx, p.pdfInfoPath, pdfPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, eris.Wrapf(err, "evidence: pdfinfo failed for %s: %s", pdfPath, stderr.String())
	}

	return parsePageCount(stdout.String())
}

// RenderPage rasterizes a single page to a PNG at outPath. outPath must end
// in .png; pdftoppm is given the path without the extension.
func (p *Poppler) RenderPage(ctx context.Context, pdfPath string, page int, outPath string) error {
	prefix := strings.TrimSuffix(outPath, ".png")
	pageArg := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, p.pdfToPpmPath,
		"-png", "-r", "200", "-f", pageArg, "-l", pageArg, "-singlefile",
		pdfPath, prefix,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return eris.Wrapf(err, "evidence: pdftoppm failed for %s page %d: %s", pdfPath, page, stderr.String())
	}
	return nil
}

// parsePageCount extracts the page count from pdfinfo output.
func parsePageCount(out string) (int, error) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, eris.Wrap(err, "evidence: parse page count")
		}
		return n, nil
	}
	return 0, eris.New("evidence: no Pages line in pdfinfo output")
}

// Tesseract recognizes text using the tesseract CLI tool.
type Tesseract struct {
	binPath string
}

// NewTesseract creates a Tesseract recognizer. If binPath is empty,
// "tesseract" is used.
func NewTesseract(binPath string) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	return &Tesseract{binPath: binPath}
}

// Recognize runs tesseract on the image and returns stdout.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.binPath, imagePath, "stdout")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "evidence: tesseract failed for %s: %s", imagePath, stderr.String())
	}

	return stdout.String(), nil
}
