package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

var thresholdCmd = &cobra.Command{
	Use:   "threshold <source> [value]",
	Short: "Show or set a source's baseline",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		metric, _ := cmd.Flags().GetString("metric")

		if len(args) == 2 {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			res, err := c.SetThreshold(cmd.Context(), args[0], metric, value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %g\n", res.Source, res.Metric, res.Value)
			return nil
		}

		res, err := c.Threshold(cmd.Context(), args[0], metric)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %g\n", res.Source, res.Metric, res.Value)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the model's shape",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := newClient(cmd).ModelInfo(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "examples: %d\n", info.Stats.Examples)
		fmt.Fprintf(out, "leaves:   %d\n", info.Stats.Leaves)
		fmt.Fprintf(out, "splits:   %d\n", info.Stats.Splits)
		fmt.Fprintf(out, "depth:    %d\n", info.Stats.Depth)
		classes := append([]string(nil), info.Stats.Classes...)
		sort.Strings(classes)
		fmt.Fprintf(out, "classes:  %v\n", classes)
		fmt.Fprintf(out, "criterion: %s, grace period %d, confidence %g\n",
			info.Config.Criterion, info.Config.GracePeriod, info.Config.Confidence)
		fmt.Fprintf(out, "uptime:   %.0fs\n", info.UptimeSeconds)
		return nil
	},
}

func init() {
	thresholdCmd.Flags().String("metric", "", "Threshold metric (default bits_per_sec)")
}
