package main

import (
	"fmt"

	"linkqual/internal/common"
	"linkqual/internal/pipeline"
	"linkqual/internal/server"

	"github.com/spf13/cobra"
)

// demoScenario idles a link, labels one good sample, then checks both ends.
func demoScenario(source string) []pipeline.Observation {
	obs := make([]pipeline.Observation, 0, 13)
	for i := 0; i < 10; i++ {
		obs = append(obs, pipeline.Observation{Source: source, Value: 10})
	}
	return append(obs,
		pipeline.Observation{Source: source, Value: 1000000, Label: common.LabelGood},
		pipeline.Observation{Source: source, Value: 1000000},
		pipeline.Observation{Source: source, Value: 10},
	)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Replay the idle-link scenario against a pretrained service",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		source, _ := cmd.Flags().GetString("source")
		obs := demoScenario(source)

		if stream, _ := cmd.Flags().GetBool("stream"); stream {
			var failed error
			err := c.Replay(cmd.Context(), obs, func(_ pipeline.Observation, msg server.StreamMessage) {
				if msg.Error != "" {
					failed = fmt.Errorf("%d %s", msg.Status, msg.Error)
					return
				}
				printResult(cmd, *msg.Result)
			})
			if err != nil {
				return err
			}
			return failed
		}

		for _, o := range obs {
			res, err := c.Observe(cmd.Context(), o)
			if err != nil {
				return err
			}
			printResult(cmd, res.Result)
		}
		return nil
	},
}

func init() {
	demoCmd.Flags().String("source", "source_a", "Source name to use")
	demoCmd.Flags().Bool("stream", false, "Send over the websocket stream instead of HTTP")
}
