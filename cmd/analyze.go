package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/exceptions-cli/internal/model"
	"github.com/sells-group/exceptions-cli/internal/pipeline"
	"github.com/sells-group/exceptions-cli/internal/store"
)

var (
	analyzeType   string
	analyzeStatus string
	analyzeVendor string
	analyzeLimit  int
	analyzeOut    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze exception records against their supporting documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		analyzer, err := initAnalyzer(st)
		if err != nil {
			return err
		}

		records, err := st.QueryExceptions(ctx, store.Filter{
			ExceptionType: model.ExceptionType(analyzeType),
			Status:        analyzeStatus,
			VendorAccount: analyzeVendor,
			Limit:         analyzeLimit,
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no exception records match the filter")
			return nil
		}

		summary, runErr := analyzer.Run(ctx, records)

		fmt.Printf("run %s: %d records, %d analyzed, %d skipped, %d failed, %d fixes proposed\n",
			summary.RunID, summary.Total, summary.Analyzed, summary.Skipped, summary.Failed, summary.Fixes)

		if analyzeOut != "" && len(summary.Results) > 0 {
			if err := pipeline.WriteArtifact(analyzeOut, summary.Results); err != nil {
				return err
			}
			fmt.Printf("results exported to %s\n", analyzeOut)
		}

		return runErr
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeType, "type", "", "only analyze this exception type")
	analyzeCmd.Flags().StringVar(&analyzeStatus, "status", "open", "record status to analyze")
	analyzeCmd.Flags().StringVar(&analyzeVendor, "vendor", "", "only analyze this vendor account")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "max records to analyze (default 100)")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "export results to a JSON artifact file")
	rootCmd.AddCommand(analyzeCmd)
}
