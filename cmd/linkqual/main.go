package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"linkqual/internal/auth"
	"linkqual/internal/cfg"
	"linkqual/internal/common"
	"linkqual/internal/features"
	"linkqual/internal/metrics"
	"linkqual/internal/ml"
	"linkqual/internal/pipeline"
	"linkqual/internal/pretrain"
	"linkqual/internal/server"
	"linkqual/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mw := metrics.NewWrapper(metrics.NewWithRegistry(reg))

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	p, err := initializePipeline(ctx, c, mw, store)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline initialization failed")
	}

	opts := []server.Option{
		server.WithGatherer(reg),
		server.WithStreamMetrics(mw),
		server.WithRateLimit(c.RateLimit, c.RateBurst),
	}
	if c.AuthEnabled() {
		opts = append(opts, server.WithVerifier(auth.NewVerifier(c.APIKey, c.APISecret)))
		log.Info().Msg("Signed threshold updates enabled")
	}
	srv := server.New(p, c.MetricsPort, opts...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("API server failed")
			cancel()
		}
	}()

	if path := os.Getenv(common.EnvConfigFile); path != "" {
		startConfigWatcher(ctx, &wg, path, p)
	}
	if store != nil {
		startSnapshotter(ctx, &wg, c.SnapshotInterval, p, store, mw)
	}

	waitForShutdown(ctx, cancel)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown API server")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}

	if store != nil {
		saveSnapshot(p, store, mw)
	}
}

func setupLogging(level string) {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, using info")
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
}

// initializeStorage opens the store if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return nil
	}
	return store
}

// initializePipeline builds the pipeline, restores persisted state and
// pretrains a model that was not restored.
func initializePipeline(ctx context.Context, c cfg.Settings, mw *metrics.MetricsWrapper, store *storage.Store) (*pipeline.Pipeline, error) {
	clf, err := ml.NewWithMetrics(c.ClassifierConfig(), mw)
	if err != nil {
		return nil, err
	}
	layer := features.NewLayer(features.NewThresholdStore(c.DefaultThreshold), features.NewHistoryStore(c.WindowSize))

	p := pipeline.New(layer, clf, pipeline.WithWarmup(c.WarmupSamples), pipeline.WithMetrics(mw))

	restored := false
	if store != nil {
		if thresholds, err := store.LoadThresholds(); err != nil {
			log.Warn().Err(err).Msg("failed to load thresholds")
		} else if n := p.LoadThresholds(thresholds); n > 0 {
			log.Info().Int("count", n).Msg("Thresholds restored")
		}

		rec, err := store.LoadModel()
		switch {
		case errors.Is(err, storage.ErrNotFound):
			log.Info().Msg("No model snapshot found")
		case err != nil:
			log.Warn().Err(err).Msg("failed to load model snapshot")
		default:
			if err := p.Restore(rec.Data); err != nil {
				log.Warn().Err(err).Msg("model snapshot rejected, starting fresh")
			} else {
				restored = true
				log.Info().Int64("examples", rec.Examples).Time("saved_at", rec.SavedAt).Msg("Model restored")
				if diff := c.ClassifierConfig().Diff(p.ModelInfo().Config); len(diff) > 0 {
					log.Warn().Strs("settings", diff).Msg("restored model keeps its own classifier settings, configured values ignored")
				}
			}
		}
	}

	// configured baselines win over persisted ones
	for source, v := range c.SourceThresholds {
		if err := p.SetThreshold(source, common.MetricBitsPerSec, v); err != nil {
			return nil, err
		}
	}
	if store != nil {
		for source, v := range c.SourceThresholds {
			if err := store.SaveThreshold(source, common.MetricBitsPerSec, v); err != nil {
				log.Warn().Err(err).Str("source", source).Msg("failed to persist configured threshold")
			}
		}
	}

	// synthetic examples stay out of the observation log
	if c.Pretrain && !restored {
		if _, err := pretrain.Run(ctx, p); err != nil {
			return nil, err
		}
	}
	if store != nil {
		p.SetSink(store)
	}
	return p, nil
}

// startConfigWatcher applies per-source thresholds from a rewritten config
// file. Model settings only take effect on restart.
func startConfigWatcher(ctx context.Context, wg *sync.WaitGroup, path string, p *pipeline.Pipeline) {
	w, err := cfg.NewWatcher(path, func(s cfg.Settings) {
		for source, v := range s.SourceThresholds {
			if err := p.SetThreshold(source, common.MetricBitsPerSec, v); err != nil {
				log.Warn().Err(err).Str("source", source).Msg("invalid threshold in config")
			}
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("config watcher unavailable")
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()
}

func startSnapshotter(ctx context.Context, wg *sync.WaitGroup, interval time.Duration, p *pipeline.Pipeline, store *storage.Store, mw *metrics.MetricsWrapper) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				saveSnapshot(p, store, mw)
			}
		}
	}()
}

func saveSnapshot(p *pipeline.Pipeline, store *storage.Store, mw *metrics.MetricsWrapper) {
	data, examples, err := p.Snapshot()
	if err != nil {
		mw.ErrorsInc()
		log.Error().Err(err).Msg("model snapshot failed")
		return
	}
	if err := store.SaveModel(data, examples); err != nil {
		mw.ErrorsInc()
		log.Error().Err(err).Msg("failed to persist model snapshot")
		return
	}
	mw.SnapshotInc()
	log.Debug().Int64("examples", examples).Int("bytes", len(data)).Msg("Model snapshot saved")
}

// waitForShutdown blocks until a signal arrives or ctx is canceled
func waitForShutdown(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()
}
