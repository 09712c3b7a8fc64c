package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var resultsRun string

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List stored analysis results for a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		results, err := st.ListAnalyses(ctx, resultsRun)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Printf("no results for run %s\n", resultsRun)
			return nil
		}

		for _, r := range results {
			fix := "-"
			if r.Fix != nil {
				var parts []string
				for k, v := range r.Fix.Fields {
					parts = append(parts, fmt.Sprintf("%s=%v", k, v))
				}
				fix = strings.Join(parts, " ")
				if r.Fix.Confidence != nil {
					fix += fmt.Sprintf(" (confidence %d)", *r.Fix.Confidence)
				}
			}
			diagnosis := r.Diagnosis
			if idx := strings.IndexByte(diagnosis, '\n'); idx >= 0 {
				diagnosis = diagnosis[:idx]
			}
			fmt.Printf("%-30s %-20s %-40s %s\n", r.DocumentID, r.ExceptionType, fix, diagnosis)
		}
		return nil
	},
}

func init() {
	resultsCmd.Flags().StringVar(&resultsRun, "run", "", "analysis run ID")
	_ = resultsCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(resultsCmd)
}
