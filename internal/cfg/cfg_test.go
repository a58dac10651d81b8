package cfg

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"linkqual/internal/ml"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.DefaultThreshold != 500000 {
					t.Errorf("expected default threshold 500000, got %f", settings.DefaultThreshold)
				}
				if settings.WindowSize != 1000 {
					t.Errorf("expected default window size 1000, got %d", settings.WindowSize)
				}
				if settings.GracePeriod != 1 {
					t.Errorf("expected default grace period 1, got %d", settings.GracePeriod)
				}
				if settings.Confidence != 0.05 {
					t.Errorf("expected default confidence 0.05, got %f", settings.Confidence)
				}
				if settings.MaxTreeDepth != 0 {
					t.Errorf("expected unbounded depth by default, got %d", settings.MaxTreeDepth)
				}
				if settings.SplitCriterion != "info_gain" {
					t.Errorf("expected info_gain criterion, got %s", settings.SplitCriterion)
				}
				if settings.WarmupSamples != 5 {
					t.Errorf("expected 5 warmup samples, got %d", settings.WarmupSamples)
				}
				if settings.SnapshotInterval != time.Minute {
					t.Errorf("expected 1m snapshot interval, got %v", settings.SnapshotInterval)
				}
				if !settings.Pretrain {
					t.Error("expected pretraining enabled by default")
				}
			},
		},
		{
			name: "custom model settings",
			envVars: map[string]string{
				"GRACE_PERIOD":      "50",
				"CONFIDENCE":        "0.0000001",
				"MAX_TREE_DEPTH":    "8",
				"SPLIT_CRITERION":   "gini",
				"WINDOW_SIZE":       "200",
				"DEFAULT_THRESHOLD": "1000000",
				"PRETRAIN":          "false",
				"SNAPSHOT_INTERVAL": "30s",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.GracePeriod != 50 {
					t.Errorf("expected grace period 50, got %d", settings.GracePeriod)
				}
				if settings.Confidence != 1e-7 {
					t.Errorf("expected confidence 1e-7, got %g", settings.Confidence)
				}
				if settings.MaxTreeDepth != 8 {
					t.Errorf("expected max depth 8, got %d", settings.MaxTreeDepth)
				}
				if settings.SplitCriterion != "gini" {
					t.Errorf("expected gini, got %s", settings.SplitCriterion)
				}
				if settings.WindowSize != 200 {
					t.Errorf("expected window size 200, got %d", settings.WindowSize)
				}
				if settings.DefaultThreshold != 1000000 {
					t.Errorf("expected default threshold 1000000, got %f", settings.DefaultThreshold)
				}
				if settings.Pretrain {
					t.Error("expected pretraining disabled")
				}
				if settings.SnapshotInterval != 30*time.Second {
					t.Errorf("expected 30s snapshot interval, got %v", settings.SnapshotInterval)
				}
			},
		},
		{
			name:    "confidence out of range",
			envVars: map[string]string{"CONFIDENCE": "1.5"},
			wantErr: true,
		},
		{
			name:    "zero grace period",
			envVars: map[string]string{"GRACE_PERIOD": "0"},
			wantErr: true,
		},
		{
			name:    "unknown criterion",
			envVars: map[string]string{"SPLIT_CRITERION": "variance"},
			wantErr: true,
		},
		{
			name:    "metrics port too low",
			envVars: map[string]string{"METRICS_PORT": "80"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings)
	}{
		{
			name: "valid YAML config",
			yamlContent: `
features:
  defaultThreshold: 250000
  windowSize: 500
  warmupSamples: 0
  thresholds:
    source_a: 1000000

model:
  gracePeriod: 20
  confidence: 0.01
  tieThreshold: 0.1
  maxTreeDepth: 6
  nSplits: 20
  splitCriterion: gini
  pretrain: false

system:
  dataPath: "/custom/data"
  metricsPort: 9090
  snapshotInterval: "5m"
  logLevel: debug
`,
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.DefaultThreshold != 250000 {
					t.Errorf("expected default threshold 250000, got %f", settings.DefaultThreshold)
				}
				if settings.WindowSize != 500 {
					t.Errorf("expected window size 500, got %d", settings.WindowSize)
				}
				if settings.WarmupSamples != 0 {
					t.Errorf("expected warmup 0, got %d", settings.WarmupSamples)
				}
				if settings.GracePeriod != 20 {
					t.Errorf("expected grace period 20, got %d", settings.GracePeriod)
				}
				if settings.NSplits != 20 {
					t.Errorf("expected 20 split points, got %d", settings.NSplits)
				}
				if settings.SplitCriterion != "gini" {
					t.Errorf("expected gini, got %s", settings.SplitCriterion)
				}
				if settings.Pretrain {
					t.Error("expected pretraining disabled")
				}
				if settings.SnapshotInterval != 5*time.Minute {
					t.Errorf("expected 5m snapshot interval, got %v", settings.SnapshotInterval)
				}
				if settings.DataPath != "/custom/data" {
					t.Errorf("expected data path /custom/data, got %s", settings.DataPath)
				}
				if settings.ThresholdFor("source_a") != 1000000 {
					t.Errorf("expected source_a threshold 1000000, got %f", settings.ThresholdFor("source_a"))
				}
			},
		},
		{
			name: "YAML with env overrides",
			yamlContent: `
model:
  gracePeriod: 20
system:
  metricsPort: 9090
`,
			envOverrides: map[string]string{
				"GRACE_PERIOD": "5",
				"LOG_LEVEL":    "warn",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.GracePeriod != 5 {
					t.Errorf("expected env override grace period 5, got %d", settings.GracePeriod)
				}
				if settings.MetricsPort != 9090 {
					t.Errorf("expected YAML metrics port 9090, got %d", settings.MetricsPort)
				}
				if settings.LogLevel != "warn" {
					t.Errorf("expected env override log level warn, got %s", settings.LogLevel)
				}
				if settings.DefaultThreshold != 500000 {
					t.Errorf("expected default threshold 500000, got %f", settings.DefaultThreshold)
				}
			},
		},
		{
			name: "negative source threshold",
			yamlContent: `
features:
  thresholds:
    broken: -1
`,
			wantErr: true,
		},
		{
			name:        "invalid YAML",
			yamlContent: `invalid: yaml: content: [`,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			err := os.WriteFile(configPath, []byte(tt.yamlContent), 0o644)
			if err != nil {
				t.Fatalf("failed to write test config file: %v", err)
			}

			settings, err := loadFromYAML(configPath)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing config file", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

		if _, err := Load(); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("env only", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("N_SPLITS", "4")

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.NSplits != 4 {
			t.Errorf("expected 4 split points, got %d", settings.NSplits)
		}
	})
}

func TestThresholdFor(t *testing.T) {
	settings := Settings{
		DefaultThreshold: 500000,
		SourceThresholds: map[string]float64{"uplink": 2000000},
	}

	if got := settings.ThresholdFor("uplink"); got != 2000000 {
		t.Errorf("expected 2000000 for uplink, got %f", got)
	}
	if got := settings.ThresholdFor("unknown"); got != 500000 {
		t.Errorf("expected default 500000, got %f", got)
	}
}

// clearTestEnv clears potentially conflicting environment variables
func clearTestEnv(t *testing.T) {
	envVars := []string{
		"CONFIG_FILE", "DEFAULT_THRESHOLD", "WINDOW_SIZE", "GRACE_PERIOD", "CONFIDENCE",
		"TIE_THRESHOLD", "MAX_TREE_DEPTH", "MAX_LEAVES", "N_SPLITS", "SPLIT_CRITERION",
		"WARMUP_SAMPLES", "METRICS_PORT", "DATA_PATH", "SNAPSHOT_INTERVAL", "PRETRAIN",
		"LOG_LEVEL", "API_KEY", "API_SECRET", "RATE_LIMIT", "RATE_BURST",
	}

	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			t.Setenv(env, "")
		}
	}
}

func TestClassifierConfig(t *testing.T) {
	clearTestEnv(t)
	settings, err := loadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cc := settings.ClassifierConfig()
	if cc.GracePeriod != 1 || cc.NSplits != 10 || cc.Criterion != ml.InfoGain {
		t.Errorf("unexpected classifier config: %+v", cc)
	}
	if _, err := ml.New(cc); err != nil {
		t.Errorf("default settings must produce a valid classifier config: %v", err)
	}
}

func TestAPICredentials(t *testing.T) {
	clearTestEnv(t)
	t.Setenv("API_KEY", "key")

	if _, err := loadFromEnv(); err == nil {
		t.Error("expected error when only API_KEY is set")
	}

	t.Setenv("API_SECRET", "secret")
	settings, err := loadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !settings.AuthEnabled() {
		t.Error("expected auth enabled with both credentials")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	clearTestEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("features:\n  thresholds:\n    a: 100\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	changes := make(chan Settings, 4)
	w, err := NewWatcher(path, func(s Settings) {
		select {
		case changes <- s:
		default:
		}
	})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(path, []byte("features:\n  thresholds:\n    a: 250\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-changes:
			if s.SourceThresholds["a"] == 250 {
				return
			}
		case <-deadline:
			t.Fatal("config change was not picked up")
		}
	}
}

func TestRateLimitSettings(t *testing.T) {
	clearTestEnv(t)

	settings, err := loadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.RateLimit != 0 || settings.RateBurst != 20 {
		t.Errorf("expected rate limiting off with burst 20, got %f/%d", settings.RateLimit, settings.RateBurst)
	}

	t.Setenv("RATE_LIMIT", "-1")
	if _, err := loadFromEnv(); err == nil {
		t.Error("expected error for negative rate limit")
	}

	t.Setenv("RATE_LIMIT", "50")
	t.Setenv("RATE_BURST", "0")
	if _, err := loadFromEnv(); err == nil {
		t.Error("expected error for zero burst with limiting on")
	}
}
