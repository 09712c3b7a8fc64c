package planner

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/exceptions-cli/internal/model"
	"github.com/sells-group/exceptions-cli/internal/store"
)

// Mode controls how much of the plan one apply run executes.
type Mode string

const (
	// ModeAll applies every plan item.
	ModeAll Mode = "all"
	// ModeFirstOnly applies only the first item; used to trial a run before
	// committing to the full batch.
	ModeFirstOnly Mode = "first-only"
)

// Updater executes guarded writes for a plan and persists run statistics.
type Updater struct {
	store store.Store

	// Status is the record status the guard requires; records that moved out
	// of this status since analysis are never touched.
	Status string
}

// NewUpdater creates an Updater writing through st.
func NewUpdater(st store.Store, status string) *Updater {
	if status == "" {
		status = "open"
	}
	return &Updater{store: st, Status: status}
}

// Apply executes the plan in order. Each item becomes a guarded conditional
// write; outcomes are folded into UpdateStats. A store error records the
// failing item, aborts the remaining items, and returns the partial stats
// alongside the error. Stats are persisted in all cases.
func (u *Updater) Apply(ctx context.Context, runID string, items []model.UpdatePlanItem, mode Mode) (*model.UpdateStats, error) {
	if mode == ModeFirstOnly && len(items) > 1 {
		zap.L().Info("apply: first-only mode, truncating plan", zap.Int("planned", len(items)))
		items = items[:1]
	}

	stats := &model.UpdateStats{RunID: runID, Planned: len(items)}
	var applyErr error

	for _, item := range items {
		outcome := u.applyOne(ctx, item)
		stats.Record(outcome)

		if outcome.Status == model.UpdateError {
			applyErr = eris.Errorf("apply: %s/%s: %s", item.VendorAccount, item.InvoiceNumber, outcome.Reason)
			break
		}
	}
	stats.FinishedAt = time.Now().UTC()

	if err := u.store.SaveUpdateStats(ctx, *stats); err != nil {
		zap.L().Warn("apply: failed to persist run statistics", zap.Error(err))
	}

	zap.L().Info("apply: run complete",
		zap.String("run_id", runID),
		zap.Int("planned", stats.Planned),
		zap.Int("applied", stats.Applied),
		zap.Int("noops", stats.Noops),
		zap.Int("failed", stats.Failed),
	)
	return stats, applyErr
}

func (u *Updater) applyOne(ctx context.Context, item model.UpdatePlanItem) model.UpdateOutcome {
	log := zap.L().With(
		zap.String("vendor_account", item.VendorAccount),
		zap.String("invoice_number", item.InvoiceNumber),
		zap.String("field", item.Field),
	)

	matched, modified, err := u.store.ApplyCorrection(ctx, store.CorrectionWrite{
		VendorAccount: item.VendorAccount,
		InvoiceNumber: item.InvoiceNumber,
		ExceptionType: item.ExceptionType,
		Status:        u.Status,
		Field:         item.Field,
		NewValue:      item.NewValue,
		SnapshotValue: item.OldValue,
	})
	switch {
	case err != nil:
		log.Error("apply: write failed", zap.Error(err))
		return model.UpdateOutcome{Item: item, Status: model.UpdateError, Reason: err.Error()}
	case modified > 0:
		log.Info("apply: correction applied", zap.String("new_value", item.NewValue))
		return model.UpdateOutcome{Item: item, Status: model.UpdateApplied}
	case matched > 0:
		log.Info("apply: value already in place")
		return model.UpdateOutcome{Item: item, Status: model.UpdateNoop}
	default:
		log.Warn("apply: record changed since analysis, write withheld")
		return model.UpdateOutcome{
			Item:   item,
			Status: model.UpdateNotApplied,
			Reason: "record changed since analysis",
		}
	}
}
