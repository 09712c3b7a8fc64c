package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/exceptions-cli/internal/feed"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.xlsx>",
	Short: "Import exception records from a billing system export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		records, skipped, err := feed.ReadExceptions(args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no importable rows found")
			return nil
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.ImportExceptions(ctx, records)
		if err != nil {
			return err
		}

		fmt.Printf("imported %d records (%d rows skipped)\n", n, skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
