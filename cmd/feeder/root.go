package main

import (
	"os"
	"time"

	"linkqual/internal/client"
	"linkqual/internal/common"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "feeder",
	Short:         "Send link telemetry to a linkqual service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		l, err := zerolog.ParseLevel(level)
		if err != nil {
			return err
		}
		zerolog.SetGlobalLevel(l)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("url", "", "Service base URL (overrides LINKQUAL_URL env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Duration("timeout", 5*time.Second, "Request timeout")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(thresholdCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(demoCmd)
}

// newClient resolves the service URL from --url, then LINKQUAL_URL, then the
// default, and attaches API credentials from the environment.
func newClient(cmd *cobra.Command) *client.Client {
	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		url = os.Getenv(common.EnvServerURL)
	}
	if url == "" {
		url = common.DefaultServerURL
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	c := client.New(url, timeout)
	if key, secret := os.Getenv(common.EnvAPIKey), os.Getenv(common.EnvAPISecret); key != "" && secret != "" {
		c.WithCredentials(key, secret)
	}
	return c
}
