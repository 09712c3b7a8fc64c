package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/exceptions-cli/internal/model"
	"github.com/sells-group/exceptions-cli/internal/planner"
	"github.com/sells-group/exceptions-cli/internal/report"
)

var (
	applyRun       string
	applyFrom      string
	applyMode      string
	applyStatus    string
	applyThreshold int
	applyReport    string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Plan and apply confidence-gated corrections from analysis results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mode := planner.Mode(applyMode)
		if mode != planner.ModeAll && mode != planner.ModeFirstOnly {
			return eris.Errorf("invalid --mode %q (want all or first-only)", applyMode)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var results []model.AnalysisResult
		switch {
		case applyFrom != "":
			data, err := os.ReadFile(applyFrom)
			if err != nil {
				return eris.Wrapf(err, "read artifact %s", applyFrom)
			}
			if err := json.Unmarshal(data, &results); err != nil {
				return eris.Wrapf(err, "parse artifact %s", applyFrom)
			}
		case applyRun != "":
			results, err = st.ListAnalyses(ctx, applyRun)
			if err != nil {
				return err
			}
		default:
			return eris.New("either --run or --from is required")
		}
		if len(results) == 0 {
			fmt.Println("no analysis results to apply")
			return nil
		}

		threshold := applyThreshold
		if threshold <= 0 {
			threshold = cfg.Updates.ConfidenceThreshold
		}

		items := planner.BuildPlan(results, threshold)
		if len(items) == 0 {
			fmt.Printf("no results met the confidence threshold (%d)\n", threshold)
			return nil
		}

		runID := applyRun
		if runID == "" {
			runID = results[0].RunID
		}

		updater := planner.NewUpdater(st, applyStatus)
		stats, applyErr := updater.Apply(ctx, runID, items, mode)

		fmt.Printf("run %s: %d planned, %d applied, %d already in place, %d not applied\n",
			stats.RunID, stats.Planned, stats.Applied, stats.Noops, stats.Failed)
		for _, o := range stats.NotApplied {
			fmt.Printf("  %s/%s %s: %s\n", o.Item.VendorAccount, o.Item.InvoiceNumber, o.Status, o.Reason)
		}

		if applyReport != "" {
			if err := report.WriteStats(applyReport, stats); err != nil {
				return err
			}
			fmt.Printf("report written to %s\n", applyReport)
		}

		return applyErr
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyRun, "run", "", "analysis run ID to apply")
	applyCmd.Flags().StringVar(&applyFrom, "from", "", "apply from a JSON artifact file instead of the store")
	applyCmd.Flags().StringVar(&applyMode, "mode", "all", "apply mode: all or first-only")
	applyCmd.Flags().StringVar(&applyStatus, "status", "open", "record status the update guard requires")
	applyCmd.Flags().IntVar(&applyThreshold, "threshold", 0, "confidence threshold override (default from config)")
	applyCmd.Flags().StringVar(&applyReport, "report", "", "write an XLSX outcome report to this path")
	rootCmd.AddCommand(applyCmd)
}
