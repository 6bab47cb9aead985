package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
	"github.com/kheti-labs/irrigation-advisor/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Record and list irrigation events",
}

// -- history record --

var historyRecordCmd = &cobra.Command{
	Use:   "record <farmer-id>",
	Short: "Record an irrigation event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entry, err := entryFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		if err := checkEntry(entry, time.Now().UTC()); err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.RecordIrrigation(ctx, entry); err != nil {
			return eris.Wrap(err, "history record")
		}
		return writeIndented(cmd.OutOrStdout(), entry)
	},
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list <farmer-id>",
	Short: "List irrigation events, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		crop, _ := cmd.Flags().GetString("crop")
		days, _ := cmd.Flags().GetInt("days")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.HistoryFilter{FarmerID: args[0], CropName: crop, Limit: limit}
		if days > 0 {
			filter.Since = time.Now().AddDate(0, 0, -days)
		}

		entries, err := st.ListIrrigationHistory(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "history list")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No irrigation events found.")
			return nil
		}

		formatHistory(cmd.OutOrStdout(), entries)
		return nil
	},
}

func entryFromFlags(cmd *cobra.Command, farmerID string) (*model.IrrigationHistoryEntry, error) {
	fl := cmd.Flags()
	crop, _ := fl.GetString("crop")
	liters, _ := fl.GetFloat64("liters")
	method, _ := fl.GetString("method")
	notes, _ := fl.GetString("notes")

	e := &model.IrrigationHistoryEntry{
		FarmerID:          farmerID,
		CropName:          crop,
		WaterAmountLiters: liters,
		Method:            model.IrrigationMethod(method),
		Notes:             notes,
	}

	if date, _ := fl.GetString("date"); date != "" {
		t, err := parseEventTime(date)
		if err != nil {
			return nil, err
		}
		e.Date = t
	}
	if fl.Changed("before") {
		v, _ := fl.GetFloat64("before")
		e.SoilMoistureBefore = &v
	}
	if fl.Changed("after") {
		v, _ := fl.GetFloat64("after")
		e.SoilMoistureAfter = &v
	}
	if fl.Changed("rating") {
		v, _ := fl.GetInt("rating")
		e.EffectivenessRating = &v
	}
	return e, nil
}

// parseEventTime accepts RFC 3339 or a bare date (midnight UTC).
func parseEventTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, invalid("date", fmt.Sprintf("bad date %q, want YYYY-MM-DD or RFC 3339", s))
	}
	return t, nil
}

func formatHistory(out io.Writer, entries []model.IrrigationHistoryEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tCROP\tLITERS\tMETHOD\tBEFORE\tAFTER\tRATING")
	_, _ = fmt.Fprintln(w, "----\t----\t------\t------\t------\t-----\t------")

	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\t%s\t%s\t%s\n",
			e.Date.Format("2006-01-02 15:04"),
			e.CropName,
			e.WaterAmountLiters,
			orDash(string(e.Method)),
			pct(e.SoilMoistureBefore),
			pct(e.SoilMoistureAfter),
			rating(e.EffectivenessRating),
		)
	}
	_ = w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func pct(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64) + "%"
}

func rating(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v) + "/5"
}

func init() {
	rf := historyRecordCmd.Flags()
	rf.String("crop", "", "crop irrigated")
	rf.Float64("liters", 0, "water applied in liters")
	rf.String("date", "", "event time, YYYY-MM-DD or RFC 3339 (default now)")
	rf.String("method", "", "irrigation method")
	rf.Float64("before", 0, "soil moisture before, percent")
	rf.Float64("after", 0, "soil moisture after, percent")
	rf.Int("rating", 0, "effectiveness rating 1-5")
	rf.String("notes", "", "free-text notes")
	_ = historyRecordCmd.MarkFlagRequired("crop")

	lf := historyListCmd.Flags()
	lf.String("crop", "", "filter by crop")
	lf.Int("days", 30, "only events from the last N days (0 for all)")
	lf.Int("limit", 50, "maximum events to show")

	historyCmd.AddCommand(historyRecordCmd)
	historyCmd.AddCommand(historyListCmd)
	rootCmd.AddCommand(historyCmd)
}
