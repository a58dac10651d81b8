package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store database is nil")
	}

	dbPath := filepath.Join(tempDir, DBFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if store.Path() != dbPath {
		t.Errorf("Expected path %s, got %s", dbPath, store.Path())
	}
}

func TestNew_InvalidPath(t *testing.T) {
	// a regular file cannot hold the database directory
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := New(file)
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Error closing store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Error closing already closed store: %v", err)
	}
	if store.Path() != "" {
		t.Error("Expected empty path after close")
	}
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{}
	if err := store.Close(); err != nil {
		t.Errorf("Expected nil error closing nil db, got %v", err)
	}
}

func TestStoreObservation(t *testing.T) {
	store := newTestStore(t)

	rec := ObservationRecord{
		ID:        "obs-1",
		Source:    "A",
		Value:     1000000,
		Label:     "good",
		Timestamp: time.Now(),
	}
	if err := store.StoreObservation(rec); err != nil {
		t.Fatalf("Failed to store observation: %v", err)
	}

	if err := store.StoreObservation(ObservationRecord{Value: 1}); err == nil {
		t.Error("Expected error for observation without source")
	}

	n, err := store.CountObservations()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expected 1 observation, got %d", n)
	}
}

func TestGetObservations(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		for _, src := range []string{"A", "A_B"} {
			rec := ObservationRecord{
				Source:    src,
				Value:     float64(i),
				Timestamp: base.Add(time.Duration(i) * time.Minute),
			}
			if err := store.StoreObservation(rec); err != nil {
				t.Fatalf("Failed to store observation: %v", err)
			}
		}
	}

	got, err := store.GetObservations("A", base.Add(time.Minute), base.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("Failed to get observations: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 observations, got %d", len(got))
	}
	for i, rec := range got {
		if rec.Source != "A" {
			t.Errorf("Expected source A, got %s", rec.Source)
		}
		if rec.Value != float64(i+1) {
			t.Errorf("Expected value %d at %d, got %f", i+1, i, rec.Value)
		}
	}

	empty, err := store.GetObservations("missing", base, base.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no observations for unknown source, got %d", len(empty))
	}
}

func TestAllObservations_ArrivalOrder(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// same timestamp for every record, interleaved sources
	sources := []string{"B", "A", "B", "C", "A"}
	for i, src := range sources {
		if err := store.StoreObservation(ObservationRecord{Source: src, Value: float64(i), Timestamp: ts}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.AllObservations()
	if err != nil {
		t.Fatalf("Failed to list observations: %v", err)
	}
	if len(all) != len(sources) {
		t.Fatalf("Expected %d observations, got %d", len(sources), len(all))
	}
	for i, rec := range all {
		if rec.Source != sources[i] || rec.Value != float64(i) {
			t.Errorf("Record %d out of order: %+v", i, rec)
		}
		if i > 0 && rec.Seq <= all[i-1].Seq {
			t.Errorf("Expected increasing sequence, got %d after %d", rec.Seq, all[i-1].Seq)
		}
	}
}

func TestThresholds(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveThreshold("A", "bits_per_sec", 250000); err != nil {
		t.Fatalf("Failed to save threshold: %v", err)
	}
	if err := store.SaveThreshold("A", "latency_ms", 5); err != nil {
		t.Fatalf("Failed to save threshold: %v", err)
	}
	if err := store.SaveThresholds(map[string]map[string]float64{"B": {"bits_per_sec": 1e6}}); err != nil {
		t.Fatalf("Failed to save thresholds: %v", err)
	}

	got, err := store.LoadThresholds()
	if err != nil {
		t.Fatalf("Failed to load thresholds: %v", err)
	}
	if got["A"]["bits_per_sec"] != 250000 || got["A"]["latency_ms"] != 5 {
		t.Errorf("Unexpected thresholds for A: %v", got["A"])
	}
	if got["B"]["bits_per_sec"] != 1e6 {
		t.Errorf("Unexpected thresholds for B: %v", got["B"])
	}
}

func TestModel(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadModel()
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := store.SaveModel([]byte("not json"), 1); err == nil {
		t.Error("Expected error for invalid snapshot")
	}

	if err := store.SaveModel([]byte(`{"version":1}`), 30); err != nil {
		t.Fatalf("Failed to save model: %v", err)
	}
	if err := store.SaveModel([]byte(`{"version":1,"examples":31}`), 31); err != nil {
		t.Fatalf("Failed to save model: %v", err)
	}

	rec, err := store.LoadModel()
	if err != nil {
		t.Fatalf("Failed to load model: %v", err)
	}
	if rec.Examples != 31 {
		t.Errorf("Expected latest snapshot with 31 examples, got %d", rec.Examples)
	}
	if string(rec.Data) != `{"version":1,"examples":31}` {
		t.Errorf("Unexpected snapshot data: %s", rec.Data)
	}
	if rec.SavedAt.IsZero() {
		t.Error("Expected SavedAt to be set")
	}
}

func TestStore_Reopen(t *testing.T) {
	dir := t.TempDir()

	store, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveThreshold("A", "bits_per_sec", 42); err != nil {
		t.Fatal(err)
	}
	if err := store.StoreObservation(ObservationRecord{Source: "A", Value: 1}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	store, err = New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	th, err := store.LoadThresholds()
	if err != nil {
		t.Fatal(err)
	}
	if th["A"]["bits_per_sec"] != 42 {
		t.Errorf("Expected threshold to survive reopen, got %v", th)
	}
	if n, _ := store.CountObservations(); n != 1 {
		t.Errorf("Expected 1 observation after reopen, got %d", n)
	}
}
