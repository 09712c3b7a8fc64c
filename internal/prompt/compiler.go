// Package prompt renders exception-type templates into model prompts.
package prompt

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/exceptions-cli/internal/model"
)

// noEvidenceNote replaces the evidence placeholder when no document text is
// available, so the model never sees an ambiguous empty slot.
const noEvidenceNote = "No supporting document text is available for this invoice."

// Compiler renders prompts from exception-type templates.
type Compiler struct {
	templates map[model.ExceptionType]string
	generic   string
	printer   *message.Printer
}

// NewCompiler creates a Compiler with the built-in templates, optionally
// merged with overrides from a YAML file.
func NewCompiler(templatesFile string) (*Compiler, error) {
	templates := builtinTemplates()
	generic := genericTemplate

	if templatesFile != "" {
		var err error
		templates, generic, err = loadTemplateOverrides(templatesFile, templates, generic)
		if err != nil {
			return nil, err
		}
	}

	return &Compiler{
		templates: templates,
		generic:   generic,
		printer:   message.NewPrinter(language.English),
	}, nil
}

// Compile renders the prompt for a record. Evidence is included only when
// includeEvidence is set; a withheld, failed, or empty extraction resolves
// the evidence placeholder to an explicit note, and the too-large sentinel
// text is inserted verbatim.
func (c *Compiler) Compile(rec model.ExceptionRecord, ev model.Extraction, includeEvidence bool) string {
	tmpl, ok := c.templates[rec.ExceptionType]
	if !ok {
		tmpl = c.generic
	}

	recordJSON, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		recordJSON = []byte("{}")
	}

	r := strings.NewReplacer(
		"{vendor_account}", rec.VendorAccount,
		"{invoice_number}", rec.InvoiceNumber,
		"{record_json}", string(recordJSON),
		"{variance}", c.printer.Sprintf("$%.2f", rec.Variance()),
		"{evidence}", c.evidenceSection(ev, includeEvidence),
	)
	return r.Replace(tmpl)
}

func (c *Compiler) evidenceSection(ev model.Extraction, include bool) string {
	switch {
	case !include:
		return noEvidenceNote
	case ev.TooLarge:
		return model.TooLargeSentinel
	case ev.Failed, strings.TrimSpace(ev.Text) == "":
		return noEvidenceNote
	default:
		return ev.Text
	}
}
