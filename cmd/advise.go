package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

var adviseReq model.DecisionRequest

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Print an irrigation decision for one farmer and crop",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "advise")
		if err != nil {
			return err
		}
		defer env.Close()

		d, err := env.Advisor.Advise(cmd.Context(), adviseReq)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	},
}

func init() {
	f := adviseCmd.Flags()
	f.StringVar(&adviseReq.FarmerID, "farmer", "", "farmer ID")
	f.StringVar(&adviseReq.CropName, "crop", "", "crop name")
	f.Float64Var(&adviseReq.Latitude, "lat", 0, "farm latitude")
	f.Float64Var(&adviseReq.Longitude, "lon", 0, "farm longitude")
	_ = adviseCmd.MarkFlagRequired("farmer")
	_ = adviseCmd.MarkFlagRequired("crop")
	_ = adviseCmd.MarkFlagRequired("lat")
	_ = adviseCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(adviseCmd)
}
