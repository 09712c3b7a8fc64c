// Package report renders update run statistics as an XLSX workbook.
package report

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/exceptions-cli/internal/model"
)

// WriteStats writes a two-sheet workbook: a run summary and a detail sheet
// listing every write that did not land.
func WriteStats(path string, stats *model.UpdateStats) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	addRow(summary, "Run ID", stats.RunID)
	addRow(summary, "Planned", strconv.Itoa(stats.Planned))
	addRow(summary, "Applied", strconv.Itoa(stats.Applied))
	addRow(summary, "No-ops", strconv.Itoa(stats.Noops))
	addRow(summary, "Failed", strconv.Itoa(stats.Failed))
	addRow(summary, "Finished", stats.FinishedAt.Format("2006-01-02 15:04:05 MST"))

	detail, err := f.AddSheet("Not Applied")
	if err != nil {
		return eris.Wrap(err, "report: add detail sheet")
	}
	addRow(detail, "Vendor Account", "Invoice Number", "Field", "Old Value", "New Value", "Confidence", "Status", "Reason")
	for _, o := range stats.NotApplied {
		addRow(detail,
			o.Item.VendorAccount,
			o.Item.InvoiceNumber,
			o.Item.Field,
			o.Item.OldValue,
			o.Item.NewValue,
			strconv.Itoa(o.Item.Confidence),
			string(o.Status),
			o.Reason,
		)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
