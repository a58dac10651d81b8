package backtest

import (
	"context"
	"testing"
	"time"

	"linkqual/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	records []storage.ObservationRecord
}

func (m *memWriter) StoreObservation(rec storage.ObservationRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func TestGenerate(t *testing.T) {
	w := &memWriter{}
	n, err := Generate(w, GenOptions{
		Sources:   []string{"a", "b"},
		Threshold: 500000,
		Start:     base,
		Interval:  time.Minute,
		Samples:   100,
		LabelRate: 0.5,
		Seed:      42,
	})
	require.NoError(t, err)
	assert.Equal(t, 200, n)
	require.Len(t, w.records, 200)

	labeled := 0
	for _, rec := range w.records {
		assert.Greater(t, rec.Value, 0.0)
		if rec.Label != "" {
			labeled++
		}
	}
	assert.InDelta(t, 100, labeled, 30)
	assert.Equal(t, base.Add(99*time.Minute), w.records[199].Timestamp)

	again := &memWriter{}
	_, err = Generate(again, GenOptions{Sources: []string{"a", "b"}, Threshold: 500000, Start: base, Interval: time.Minute, Samples: 100, LabelRate: 0.5, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, w.records, again.records, "same seed, same data")
}

func TestGenerate_InvalidThreshold(t *testing.T) {
	_, err := Generate(&memWriter{}, GenOptions{Sources: []string{"a"}, Samples: 1})
	assert.Error(t, err)
}

func TestGenerate_LearnableByEngine(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = Generate(store, GenOptions{
		Sources: []string{"a", "b", "c"}, Threshold: 500000, Start: base,
		Samples: 300, LabelRate: 1, Seed: 7,
	})
	require.NoError(t, err)

	dl := NewDataLoader()
	require.NoError(t, dl.LoadFromBoltDB(store, nil, time.Time{}, time.Time{}))
	engine, err := NewEngine(testSettings(), dl, false)
	require.NoError(t, err)
	require.NoError(t, engine.Run(context.Background()))

	res := engine.GetResults()
	assert.Equal(t, 900, res.Labeled)
	assert.Greater(t, res.Accuracy, 0.8, "regimes a decade apart are separable on the ratio feature")
}
