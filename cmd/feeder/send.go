package main

import (
	"fmt"
	"strconv"

	"linkqual/internal/pipeline"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <source> <value> [label]",
	Short: "Send one observation and print the prediction",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[1], err)
		}
		obs := pipeline.Observation{Source: args[0], Value: value}
		if len(args) == 3 {
			obs.Label = args[2]
		}

		res, err := newClient(cmd).Observe(cmd.Context(), obs)
		if err != nil {
			return err
		}
		printResult(cmd, res.Result)
		return nil
	},
}

func printResult(cmd *cobra.Command, res pipeline.Result) {
	prediction := "no data"
	if res.Predicted {
		prediction = res.Prediction
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s value=%g relative_to_min=%.4f prediction=%s learned=%t\n",
		res.Source, res.Value, res.RelativeToMin, prediction, res.Learned)
}
