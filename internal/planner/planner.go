// Package planner turns durable analysis results into a confidence-gated
// update plan and applies it through guarded conditional writes.
package planner

import (
	"go.uber.org/zap"

	"github.com/sells-group/exceptions-cli/internal/model"
)

// BuildPlan filters analysis results down to the writes worth attempting. A
// result is planned only when its exception type is update-eligible, a fix
// proposes a non-empty value for the eligible field, and the model's
// confidence meets the threshold. Results without identity keys are logged
// and skipped.
func BuildPlan(results []model.AnalysisResult, threshold int) []model.UpdatePlanItem {
	var items []model.UpdatePlanItem
	for _, res := range results {
		field := model.CorrectableField(res.ExceptionType)
		if field == "" || res.Fix == nil {
			continue
		}

		newValue := res.Fix.Value(field)
		if newValue == "" {
			continue
		}

		if model.SupportsConfidence(res.ExceptionType) {
			if res.Fix.Confidence == nil {
				zap.L().Debug("plan: fix carries no confidence score",
					zap.String("document_id", res.DocumentID))
				continue
			}
			if *res.Fix.Confidence < threshold {
				zap.L().Debug("plan: confidence below threshold",
					zap.String("document_id", res.DocumentID),
					zap.Int("confidence", *res.Fix.Confidence),
					zap.Int("threshold", threshold))
				continue
			}
		}

		if res.Snapshot.VendorAccount == "" || res.Snapshot.InvoiceNumber == "" {
			zap.L().Warn("plan: result missing identity keys, cannot target update",
				zap.String("document_id", res.DocumentID))
			continue
		}

		item := model.UpdatePlanItem{
			VendorAccount: res.Snapshot.VendorAccount,
			InvoiceNumber: res.Snapshot.InvoiceNumber,
			ExceptionType: res.ExceptionType,
			Field:         field,
			OldValue:      res.Snapshot.Value,
			NewValue:      newValue,
		}
		if res.Fix.Confidence != nil {
			item.Confidence = *res.Fix.Confidence
		}
		items = append(items, item)
	}
	return items
}
