// Package storage persists the service state in a BoltDB file: per-source
// thresholds, the observation log used for backtesting, and classifier
// snapshots.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	thresholdsBucket   = "thresholds"   // source -> {metric: value}
	observationsBucket = "observations" // source_timestamp -> ObservationRecord
	modelsBucket       = "models"       // snapshot key -> ModelRecord

	// DBFile is the database file name inside the data directory.
	DBFile = "linkqual.db"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store provides persistent storage backed by BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database under dataPath and makes sure every
// bucket exists.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, DBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{thresholdsBucket, observationsBucket, modelsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s.db == nil {
		return ""
	}
	return s.db.Path()
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func putJSON(b *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return b.Put([]byte(key), data)
}

// timeKey formats key so that byte order matches time order within a prefix.
func timeKey(prefix string, ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%020d", prefix, ts.UnixNano()))
}

func hasPrefix(data, prefix []byte) bool {
	return bytes.HasPrefix(data, prefix)
}
