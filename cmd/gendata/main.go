package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"linkqual/internal/backtest"
	"linkqual/internal/common"
	"linkqual/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath  = flag.String("data", "data", "Data directory path")
		sources   = flag.String("sources", "link_a,link_b,link_c", "Comma-separated source names")
		samples   = flag.Int("samples", 1000, "Samples per source")
		interval  = flag.Duration("interval", time.Minute, "Time between samples")
		threshold = flag.Float64("threshold", common.DefaultThreshold, "Baseline the quality regimes are scaled against")
		labelRate = flag.Float64("label-rate", 0.3, "Share of samples written with a label")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	names := strings.Split(*sources, ",")
	fmt.Printf("Generating sample telemetry for %s...\n", strings.Join(names, ", "))
	fmt.Printf("  Samples: %d per source every %s\n", *samples, *interval)
	fmt.Printf("  Label rate: %.2f\n", *labelRate)
	fmt.Printf("  Data Path: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage")
	}
	defer store.Close()

	n, err := backtest.Generate(store, backtest.GenOptions{
		Sources:   names,
		Threshold: *threshold,
		Start:     time.Now().Add(-time.Duration(*samples) * *interval),
		Interval:  *interval,
		Samples:   *samples,
		LabelRate: *labelRate,
		Seed:      *seed,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate data")
	}

	fmt.Printf("Generated %d observations in %s\n", n, store.Path())
}
