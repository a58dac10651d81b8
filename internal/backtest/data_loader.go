package backtest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"linkqual/internal/storage"

	"github.com/rs/zerolog/log"
)

// ObservationReader is the part of the store the loader reads from.
type ObservationReader interface {
	AllObservations() ([]storage.ObservationRecord, error)
	GetObservations(source string, start, end time.Time) ([]storage.ObservationRecord, error)
}

// DataLoader serves recorded observations in replay order.
type DataLoader struct {
	data      []storage.ObservationRecord
	index     int
	StartTime time.Time
	EndTime   time.Time
}

func NewDataLoader() *DataLoader {
	return &DataLoader{}
}

// LoadFromBoltDB loads observations for sources between start and end.
// No sources means every source; a zero start or end leaves that side open.
func (dl *DataLoader) LoadFromBoltDB(store ObservationReader, sources []string, start, end time.Time) error {
	log.Info().
		Time("start", start).
		Time("end", end).
		Strs("sources", sources).
		Msg("Loading observations from BoltDB")

	if len(sources) == 0 {
		records, err := store.AllObservations()
		if err != nil {
			return fmt.Errorf("failed to load observations: %w", err)
		}
		for _, rec := range records {
			if !start.IsZero() && rec.Timestamp.Before(start) {
				continue
			}
			if !end.IsZero() && rec.Timestamp.After(end) {
				continue
			}
			dl.data = append(dl.data, rec)
		}
	} else {
		if end.IsZero() {
			end = time.Now()
		}
		for _, source := range sources {
			records, err := store.GetObservations(source, start, end)
			if err != nil {
				return fmt.Errorf("failed to load observations for %s: %w", source, err)
			}
			dl.data = append(dl.data, records...)
		}
	}

	dl.finish()
	log.Info().
		Int("total_points", len(dl.data)).
		Time("data_start", dl.StartTime).
		Time("data_end", dl.EndTime).
		Msg("Data loaded successfully")
	return nil
}

// LoadFromCSV reads a file with a header naming at least source and value.
// label and timestamp (RFC 3339) columns are optional.
func (dl *DataLoader) LoadFromCSV(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	return dl.readCSV(file, filePath)
}

func (dl *DataLoader) readCSV(r io.Reader, name string) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	indices := make(map[string]int)
	for i, col := range header {
		indices[strings.ToLower(strings.TrimSpace(col))] = i
	}
	srcIdx, okSrc := indices["source"]
	valIdx, okVal := indices["value"]
	if !okSrc || !okVal {
		return fmt.Errorf("CSV header must contain source and value columns")
	}

	field := func(row []string, col string) string {
		if i, ok := indices[col]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	skipped := 0
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if srcIdx >= len(row) || valIdx >= len(row) {
			skipped++
			continue
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(row[valIdx]), 64)
		if err != nil {
			skipped++
			continue
		}
		rec := storage.ObservationRecord{
			Seq:    uint64(line - 1),
			Source: strings.TrimSpace(row[srcIdx]),
			Value:  value,
			Label:  field(row, "label"),
		}
		if ts := field(row, "timestamp"); ts != "" {
			if rec.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
				skipped++
				continue
			}
		}
		dl.data = append(dl.data, rec)
	}

	dl.finish()
	log.Info().
		Str("file", name).
		Int("total_points", len(dl.data)).
		Int("skipped", skipped).
		Msg("CSV data loaded successfully")
	return nil
}

// LoadFromJSON reads a stream of observation records, one JSON value after
// another.
func (dl *DataLoader) LoadFromJSON(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	for decoder.More() {
		var rec storage.ObservationRecord
		if err := decoder.Decode(&rec); err != nil {
			return fmt.Errorf("failed to decode record %d: %w", len(dl.data)+1, err)
		}
		dl.data = append(dl.data, rec)
	}

	dl.finish()
	log.Info().
		Str("file", filePath).
		Int("total_points", len(dl.data)).
		Msg("JSON data loaded successfully")
	return nil
}

// finish orders records by time, then by sequence.
func (dl *DataLoader) finish() {
	sort.SliceStable(dl.data, func(i, j int) bool {
		a, b := dl.data[i], dl.data[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Seq < b.Seq
	})
	dl.index = 0
	if len(dl.data) > 0 {
		dl.StartTime = dl.data[0].Timestamp
		dl.EndTime = dl.data[len(dl.data)-1].Timestamp
	}
}

func (dl *DataLoader) Reset() {
	dl.index = 0
}

func (dl *DataLoader) HasNext() bool {
	return dl.index < len(dl.data)
}

func (dl *DataLoader) Next() storage.ObservationRecord {
	if dl.index >= len(dl.data) {
		return storage.ObservationRecord{}
	}
	rec := dl.data[dl.index]
	dl.index++
	return rec
}

func (dl *DataLoader) GetDataCount() int {
	return len(dl.data)
}

// GetProgress returns the share of records served, as a percentage.
func (dl *DataLoader) GetProgress() float64 {
	if len(dl.data) == 0 {
		return 100.0
	}
	return float64(dl.index) / float64(len(dl.data)) * 100.0
}
