package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const latestModelKey = "latest"

// ModelRecord wraps a serialized classifier snapshot.
type ModelRecord struct {
	SavedAt  time.Time       `json:"saved_at"`
	Examples int64           `json:"examples"`
	Data     json.RawMessage `json:"data"`
}

// SaveThreshold persists a single baseline.
func (s *Store) SaveThreshold(source, metric string, value float64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(thresholdsBucket))

		metrics := map[string]float64{}
		if data := b.Get([]byte(source)); data != nil {
			if err := json.Unmarshal(data, &metrics); err != nil {
				return fmt.Errorf("unmarshal thresholds for %s: %w", source, err)
			}
		}
		metrics[metric] = value
		return putJSON(b, source, metrics)
	})
}

// SaveThresholds persists every baseline in thresholds, replacing existing
// entries for the same source.
func (s *Store) SaveThresholds(thresholds map[string]map[string]float64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(thresholdsBucket))
		for source, metrics := range thresholds {
			if err := putJSON(b, source, metrics); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadThresholds returns every persisted baseline keyed by source then metric.
func (s *Store) LoadThresholds() (map[string]map[string]float64, error) {
	out := make(map[string]map[string]float64)

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(thresholdsBucket)).ForEach(func(k, v []byte) error {
			var metrics map[string]float64
			if err := json.Unmarshal(v, &metrics); err != nil {
				return fmt.Errorf("unmarshal thresholds for %s: %w", k, err)
			}
			out[string(k)] = metrics
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveModel stores data as the latest snapshot.
func (s *Store) SaveModel(data []byte, examples int64) error {
	if !json.Valid(data) {
		return fmt.Errorf("model snapshot is not valid JSON")
	}
	rec := ModelRecord{SavedAt: time.Now().UTC(), Examples: examples, Data: data}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket([]byte(modelsBucket)), latestModelKey, rec)
	})
}

// LoadModel returns the latest snapshot or ErrNotFound.
func (s *Store) LoadModel() (ModelRecord, error) {
	var rec ModelRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(modelsBucket)).Get([]byte(latestModelKey))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("unmarshal model record: %w", err)
		}
		return nil
	})
	return rec, err
}
