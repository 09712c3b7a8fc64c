// Package feed reads exception record exports from the billing system.
package feed

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/exceptions-cli/internal/model"
)

// ReadExceptions parses an XLSX export into exception records. Columns are
// resolved by header name, so column order in the export does not matter.
// Rows without both identity keys are skipped and counted.
func ReadExceptions(path string) ([]model.ExceptionRecord, int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, 0, eris.Wrap(err, "feed: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, 0, eris.Errorf("feed: %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, 0, eris.Errorf("feed: %s has no header row", path)
	}

	cols := headerIndex(sheet.Rows[0])
	for _, required := range []string{"vendor_account", "invoice_number", "exception_type"} {
		if _, ok := cols[required]; !ok {
			return nil, 0, eris.Errorf("feed: missing required column %q", required)
		}
	}

	var records []model.ExceptionRecord
	skipped := 0
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}

		rec := model.ExceptionRecord{
			VendorAccount: get("vendor_account"),
			InvoiceNumber: get("invoice_number"),
			ExceptionType: model.ExceptionType(get("exception_type")),
			Status:        get("status"),
			ShipTo:        get("ship_to"),
			PONumber:      get("po_num"),
			InvoiceTotal:  parseAmount(get("invoice_total")),
			POTotal:       parseAmount(get("po_total")),
			DocumentName:  get("document_name"),
		}
		if rec.Status == "" {
			rec.Status = "open"
		}
		if !rec.HasIdentity() {
			zap.L().Warn("feed: row missing identity keys, skipped", zap.Int("row", i+2))
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func headerIndex(row *xlsx.Row) map[string]int {
	cols := make(map[string]int, len(row.Cells))
	for i, cell := range row.Cells {
		name := strings.ToLower(strings.TrimSpace(cell.String()))
		if name != "" {
			cols[name] = i
		}
	}
	return cols
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// parseAmount tolerates currency formatting in exported totals.
func parseAmount(s string) float64 {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
