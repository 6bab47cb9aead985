package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
	"github.com/kheti-labs/irrigation-advisor/internal/report"
)

var (
	reportOut         string
	reportConcurrency int
)

var reportCmd = &cobra.Command{
	Use:   "report <input.csv|input.xlsx>",
	Short: "Run decisions for a list of farms and write an XLSX report",
	Long:  "Reads farmer_id, crop, lat, lon rows from a CSV or XLSX file, evaluates each in parallel and writes one workbook with a decisions sheet and a summary sheet.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if reportConcurrency > 0 {
			cfg.Report.Concurrency = reportConcurrency
		}
		env, err := initEnv(ctx, "report")
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := report.ReadFile(ctx, args[0])
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return eris.Errorf("report: %s has no data rows", args[0])
		}

		results := report.Run(ctx, env.Advisor, rows, cfg.Report.Concurrency)
		if err := report.WriteXLSX(reportOut, results); err != nil {
			return err
		}

		counts := report.Recommendations(results)
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		fmt.Fprintf(os.Stderr, "Wrote %d rows to %s\n", len(results), reportOut)
		for _, k := range keys {
			fmt.Fprintf(os.Stderr, "  %-12s %d\n", k, counts[model.Recommendation(k)])
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "irrigation-report.xlsx", "output workbook path")
	reportCmd.Flags().IntVar(&reportConcurrency, "concurrency", 0, "decisions in flight (default from config)")
	rootCmd.AddCommand(reportCmd)
}
