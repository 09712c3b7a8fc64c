package prompt

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/exceptions-cli/internal/model"
)

// FixMarker is the literal the model must emit on its own line before a
// structured correction payload.
const FixMarker = "SUGGESTED_FIX_DATA:"

// SystemText frames every analysis request.
const SystemText = "You are an accounts-payable analyst diagnosing why an invoice is blocked from posting. Ground your reasoning in the record data and the supporting document text when present. Be concise and factual."

// Placeholders available to every template:
//
//	{vendor_account}  {invoice_number}  {record_json}
//	{variance}        {evidence}
const missingPOTemplate = `An invoice from vendor account {vendor_account} is blocked because no purchase order is linked to it.

Invoice record:
{record_json}

Supporting document text:
{evidence}

Diagnose why the purchase order link is missing. If the supporting document or record data identifies the purchase order number, finish your reply with a line of the form:
` + FixMarker + ` {"po_num": "<purchase order number>", "confidence": <0-100 integer>}
Only propose a fix when the evidence supports it.`

const amountMismatchTemplate = `Invoice {invoice_number} from vendor account {vendor_account} is blocked because its total does not match the linked purchase order. The variance is {variance}.

Invoice record:
{record_json}

Supporting document text:
{evidence}

Explain the most likely cause of the variance (tax, freight, partial shipment, price change, data entry). Do not propose a structured fix; amount corrections require human review.`

const unmatchedLinesTemplate = `Invoice {invoice_number} from vendor account {vendor_account} is blocked because one or more line items could not be matched to the purchase order.

Invoice record:
{record_json}

Supporting document text:
{evidence}

Identify which line items are likely unmatched and why. Do not propose a structured fix.`

const incompleteShippingTemplate = `Invoice {invoice_number} from vendor account {vendor_account} is blocked because its shipping data is missing or incomplete.

Invoice record:
{record_json}

Supporting document text:
{evidence}

Diagnose what shipping data is missing. If the supporting document states the ship-to address, finish your reply with a line of the form:
` + FixMarker + ` {"ship_to": "<full ship-to address>", "confidence": <0-100 integer>}
Only propose a fix when the evidence supports it.`

// genericTemplate handles exception types with no registered template so an
// unknown type never halts the pipeline.
const genericTemplate = `Invoice {invoice_number} from vendor account {vendor_account} is blocked by a processing exception.

Invoice record:
{record_json}

Supporting document text:
{evidence}

Diagnose the most likely cause of the exception from the record data and document text.`

func builtinTemplates() map[model.ExceptionType]string {
	return map[model.ExceptionType]string{
		model.MissingPO:          missingPOTemplate,
		model.AmountMismatch:     amountMismatchTemplate,
		model.UnmatchedLines:     unmatchedLinesTemplate,
		model.IncompleteShipping: incompleteShippingTemplate,
	}
}

// templateFile is the YAML shape of a template override file.
type templateFile struct {
	Generic   string            `yaml:"generic"`
	Templates map[string]string `yaml:"templates"`
}

// loadTemplateOverrides merges a YAML override file over the built-ins.
func loadTemplateOverrides(path string, templates map[model.ExceptionType]string, generic string) (map[model.ExceptionType]string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "prompt: read templates file %s", path)
	}

	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, "", eris.Wrapf(err, "prompt: parse templates file %s", path)
	}

	if tf.Generic != "" {
		generic = tf.Generic
	}
	for name, tmpl := range tf.Templates {
		templates[model.ExceptionType(name)] = tmpl
	}
	return templates, generic, nil
}
