package main

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"linkqual/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath    = flag.String("data", "data", "Data directory path")
		outputPath  = flag.String("output", "observations.jsonl", "Output file, one JSON record per line")
		source      = flag.String("source", "", "Source to export (empty for all)")
		days        = flag.Int("days", 0, "Number of days to export (0 for all)")
		labeledOnly = flag.Bool("labeled", false, "Export only labeled records")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close()

	var records []storage.ObservationRecord
	var cutoff time.Time
	if *days > 0 {
		cutoff = time.Now().AddDate(0, 0, -*days)
	}
	if *source != "" {
		records, err = store.GetObservations(*source, cutoff, time.Now())
	} else {
		records, err = store.AllObservations()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read from database")
	}

	out, err := os.Create(*outputPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create output file")
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	counts := make(map[string]int)
	written := 0
	for _, rec := range records {
		if !cutoff.IsZero() && rec.Timestamp.Before(cutoff) {
			continue
		}
		if *labeledOnly && rec.Label == "" {
			continue
		}
		if err := enc.Encode(rec); err != nil {
			log.Fatal().Err(err).Msg("Failed to write JSON record")
		}
		counts[rec.Source]++
		written++
	}

	if written == 0 {
		log.Warn().Msg("No records found matching criteria")
	}
	for src, n := range counts {
		log.Info().Str("source", src).Int("records", n).Msg("Exported")
	}
	log.Info().Int("records", written).Str("output", *outputPath).Msg("Export completed")
}
