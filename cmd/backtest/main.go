package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"linkqual/internal/backtest"
	"linkqual/internal/cfg"
	"linkqual/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath     = flag.String("data", "", "Data directory, CSV or JSON file (default DATA_PATH)")
		outputPath   = flag.String("output", "backtest_results", "Output directory for results")
		logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		sources      = flag.String("sources", "", "Comma-separated sources to replay (default all)")
		startDate    = flag.String("start", "", "Start date (YYYY-MM-DD)")
		endDate      = flag.String("end", "", "End date (YYYY-MM-DD)")
		dataFormat   = flag.String("format", "auto", "Data format: auto, csv, json, boltdb")
		withPretrain = flag.Bool("pretrain", false, "Learn the synthetic set before replaying")
		saveModel    = flag.Bool("save-model", false, "Store the trained model in the BoltDB data directory")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *dataPath == "" {
		*dataPath = config.DataPath
	}
	if *dataPath == "" {
		log.Fatal().Msg("No data path: pass -data or set DATA_PATH")
	}

	fmt.Println("=== Backtest Configuration ===")
	fmt.Printf("Data Path: %s\n", *dataPath)
	fmt.Printf("Output Directory: %s\n", *outputPath)
	fmt.Printf("Criterion: %s, grace period %d, confidence %g\n", config.SplitCriterion, config.GracePeriod, config.Confidence)
	fmt.Printf("Warm-up: %d, pretrain: %t\n", config.WarmupSamples, *withPretrain)
	fmt.Println("==============================")

	startTime, endTime := parseDate(*startDate), parseDate(*endDate)
	if !endTime.IsZero() {
		endTime = endTime.Add(24*time.Hour - time.Nanosecond)
	}

	format := *dataFormat
	if format == "auto" {
		format, err = detectFormat(*dataPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to detect data format")
		}
	}

	loader := backtest.NewDataLoader()
	var store *storage.Store
	switch format {
	case "csv":
		err = loader.LoadFromCSV(*dataPath)
	case "json":
		err = loader.LoadFromJSON(*dataPath)
	case "boltdb":
		store, err = storage.New(*dataPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open BoltDB")
		}
		defer store.Close()
		err = loader.LoadFromBoltDB(store, parseSources(*sources), startTime, endTime)
	default:
		log.Fatal().Str("format", format).Msg("Unknown data format")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load data")
	}

	engine, err := backtest.NewEngine(&config, loader, *withPretrain)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := engine.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Backtest failed")
	}

	results := engine.GetResults()
	reporter := backtest.NewReporter(results, *outputPath)
	if err := reporter.GenerateReport(); err != nil {
		log.Error().Err(err).Msg("Failed to generate reports")
	}
	reporter.PrintSummary()

	if *saveModel {
		if store == nil {
			log.Warn().Msg("-save-model needs a BoltDB data directory, skipping")
		} else if data, examples, err := engine.Snapshot(); err != nil {
			log.Error().Err(err).Msg("Failed to snapshot model")
		} else if err := store.SaveModel(data, examples); err != nil {
			log.Error().Err(err).Msg("Failed to save model")
		} else {
			log.Info().Int64("examples", examples).Msg("Model saved")
		}
	}

	log.Info().Str("output", *outputPath).Msg("Backtest completed successfully")
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		log.Fatal().Err(err).Str("date", s).Msg("Invalid date format")
	}
	return t
}

// detectFormat treats directories as BoltDB stores and files by extension
func detectFormat(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat path: %w", err)
	}
	switch {
	case info.IsDir():
		return "boltdb", nil
	case strings.HasSuffix(path, ".csv"):
		return "csv", nil
	case strings.HasSuffix(path, ".json"), strings.HasSuffix(path, ".jsonl"):
		return "json", nil
	}
	return "", fmt.Errorf("cannot determine file format for: %s", path)
}

func parseSources(sources string) []string {
	var result []string
	for _, s := range strings.Split(sources, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}
