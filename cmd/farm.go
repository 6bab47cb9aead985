package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

var farmCmd = &cobra.Command{
	Use:   "farm",
	Short: "Manage farmer profiles",
	Long:  "Commands for creating, updating and viewing the farming context used by decisions.",
}

// -- farm set --

// profileFlags are the field overrides accepted by farm set.
type profileFlags struct {
	File      string
	Location  string
	SizeAcres float64
	Method    string
	Frequency int
	SoilType  string
	Crops     []string
	Stages    []string // crop=stage
	Planted   []string // crop=YYYY-MM-DD
}

var farmSet profileFlags

var farmSetCmd = &cobra.Command{
	Use:   "set <farmer-id>",
	Short: "Create or update a farmer profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fc, err := st.GetFarmingContext(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "farm set")
		}
		if fc == nil {
			fc = &model.FarmingContext{FarmerID: args[0]}
		}

		if farmSet.File != "" {
			if fc, err = readProfileFile(farmSet.File, cmd.InOrStdin()); err != nil {
				return err
			}
			fc.FarmerID = args[0]
		}
		if err := applyProfileFlags(fc, farmSet, cmd.Flags().Changed); err != nil {
			return err
		}
		if err := checkProfile(fc); err != nil {
			return err
		}
		fc.UpdatedAt = time.Now().UTC()

		if err := st.UpsertFarmingContext(ctx, fc); err != nil {
			return eris.Wrap(err, "farm set")
		}
		return writeIndented(cmd.OutOrStdout(), fc)
	},
}

// -- farm show --

var farmShowCmd = &cobra.Command{
	Use:   "show <farmer-id>",
	Short: "Show a farmer profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fc, err := st.GetFarmingContext(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "farm show")
		}
		if fc == nil {
			return eris.Errorf("farm show: no profile for %s", args[0])
		}
		return writeIndented(cmd.OutOrStdout(), fc)
	},
}

func readProfileFile(path string, stdin io.Reader) (*model.FarmingContext, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, eris.Wrap(err, "read profile")
	}
	var fc model.FarmingContext
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "parse profile")
	}
	return &fc, nil
}

// applyProfileFlags copies the flags the user set onto fc.
func applyProfileFlags(fc *model.FarmingContext, f profileFlags, changed func(string) bool) error {
	if changed("location") {
		fc.Location = f.Location
	}
	if changed("size") {
		fc.FarmSizeAcres = f.SizeAcres
	}
	if changed("method") {
		fc.IrrigationMethod = model.IrrigationMethod(f.Method)
	}
	if changed("frequency") {
		fc.IrrigationFrequencyDays = f.Frequency
	}
	if changed("soil") {
		fc.SoilType = f.SoilType
	}
	if changed("crops") {
		fc.PrimaryCrops = f.Crops
	}
	if changed("stage") {
		if fc.CropStages == nil {
			fc.CropStages = map[string]model.CropStage{}
		}
		for _, kv := range f.Stages {
			crop, stage, err := splitPair(kv, "stage")
			if err != nil {
				return err
			}
			fc.CropStages[model.CropKey(crop)] = model.CropStage(stage)
		}
	}
	if changed("planted") {
		if fc.PlantingDates == nil {
			fc.PlantingDates = map[string]time.Time{}
		}
		for _, kv := range f.Planted {
			crop, date, err := splitPair(kv, "planted")
			if err != nil {
				return err
			}
			t, err := time.Parse(time.DateOnly, date)
			if err != nil {
				return invalid("planted", fmt.Sprintf("bad date %q, want YYYY-MM-DD", date))
			}
			fc.PlantingDates[model.CropKey(crop)] = t
		}
	}
	return nil
}

func splitPair(kv, flag string) (string, string, error) {
	k, v, ok := strings.Cut(kv, "=")
	k, v = strings.TrimSpace(k), strings.TrimSpace(v)
	if !ok || k == "" || v == "" {
		return "", "", invalid(flag, fmt.Sprintf("want crop=value, got %q", kv))
	}
	return k, v, nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	f := farmSetCmd.Flags()
	f.StringVar(&farmSet.File, "file", "", "read the full profile from a JSON file (- for stdin)")
	f.StringVar(&farmSet.Location, "location", "", "village or district name")
	f.Float64Var(&farmSet.SizeAcres, "size", 0, "farm size in acres")
	f.StringVar(&farmSet.Method, "method", "", "irrigation method: drip, flood, manual, sprinkler")
	f.IntVar(&farmSet.Frequency, "frequency", 0, "usual days between irrigations")
	f.StringVar(&farmSet.SoilType, "soil", "", "soil type")
	f.StringSliceVar(&farmSet.Crops, "crops", nil, "primary crops")
	f.StringArrayVar(&farmSet.Stages, "stage", nil, "crop growth stage as crop=stage (repeatable)")
	f.StringArrayVar(&farmSet.Planted, "planted", nil, "planting date as crop=YYYY-MM-DD (repeatable)")

	farmCmd.AddCommand(farmSetCmd)
	farmCmd.AddCommand(farmShowCmd)
	rootCmd.AddCommand(farmCmd)
}
