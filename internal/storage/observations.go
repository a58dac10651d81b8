package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

// ObservationRecord is one processed observation, labeled or not, along with
// what the model predicted for it at the time.
type ObservationRecord struct {
	ID         string    `json:"id"`
	Seq        uint64    `json:"seq"`
	Source     string    `json:"source"`
	Value      float64   `json:"value"`
	Label      string    `json:"label,omitempty"`
	Prediction string    `json:"prediction,omitempty"`
	Predicted  bool      `json:"predicted"`
	Timestamp  time.Time `json:"timestamp"`
}

// StoreObservation appends record to the observation log. Seq is assigned
// by the store and breaks ties between records with equal timestamps.
func (s *Store) StoreObservation(record ObservationRecord) error {
	if record.Source == "" {
		return fmt.Errorf("observation source is required")
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(observationsBucket))

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		record.Seq = seq

		key := fmt.Sprintf("%s_%010d", timeKey(record.Source, record.Timestamp), seq)
		return putJSON(b, key, record)
	})
}

// GetObservations returns a source's records with start <= ts <= end, oldest first.
func (s *Store) GetObservations(source string, start, end time.Time) ([]ObservationRecord, error) {
	var records []ObservationRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(observationsBucket)).Cursor()

		prefix := []byte(source + "_")
		startKey := timeKey(source, start)

		for k, v := c.Seek(startKey); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var rec ObservationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			// "a_" is also a prefix of source "a_b"
			if rec.Source != source {
				continue
			}
			if rec.Timestamp.After(end) {
				break
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// AllObservations returns every record across sources in arrival order.
func (s *Store) AllObservations() ([]ObservationRecord, error) {
	var records []ObservationRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(observationsBucket)).ForEach(func(_, v []byte) error {
			var rec ObservationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	return records, nil
}

// CountObservations returns the number of stored records.
func (s *Store) CountObservations() (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(observationsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
