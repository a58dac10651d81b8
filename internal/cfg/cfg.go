package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"linkqual/internal/common"
	"linkqual/internal/ml"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	DefaultThreshold float64
	WindowSize       int
	WarmupSamples    int
	GracePeriod      int
	Confidence       float64
	TieThreshold     float64
	MaxTreeDepth     int
	MaxLeaves        int
	NSplits          int
	SplitCriterion   string
	MetricsPort      int
	DataPath         string
	SnapshotInterval time.Duration
	Pretrain         bool
	LogLevel         string
	SourceThresholds map[string]float64

	// APIKey and APISecret, when both set, require signed threshold updates.
	APIKey    string
	APISecret string

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

type ConfigFile struct {
	Features struct {
		DefaultThreshold float64            `yaml:"defaultThreshold"`
		WindowSize       int                `yaml:"windowSize"`
		WarmupSamples    *int               `yaml:"warmupSamples"`
		Thresholds       map[string]float64 `yaml:"thresholds"`
	} `yaml:"features"`

	Model struct {
		GracePeriod    int     `yaml:"gracePeriod"`
		Confidence     float64 `yaml:"confidence"`
		TieThreshold   float64 `yaml:"tieThreshold"`
		MaxTreeDepth   int     `yaml:"maxTreeDepth"`
		MaxLeaves      int     `yaml:"maxLeaves"`
		NSplits        int     `yaml:"nSplits"`
		SplitCriterion string  `yaml:"splitCriterion"`
		Pretrain       *bool   `yaml:"pretrain"`
	} `yaml:"model"`

	System struct {
		DataPath         string  `yaml:"dataPath"`
		MetricsPort      int     `yaml:"metricsPort"`
		SnapshotInterval string  `yaml:"snapshotInterval"`
		LogLevel         string  `yaml:"logLevel"`
		RateLimit        float64 `yaml:"rateLimit"`
		RateBurst        int     `yaml:"rateBurst"`
	} `yaml:"system"`
}

// Load reads settings from an optional .env file, then CONFIG_FILE if set,
// then the environment. Environment variables always win.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	snapshotInterval, err := time.ParseDuration(config.System.SnapshotInterval)
	if err != nil {
		snapshotInterval = time.Minute
	}
	snapshotInterval = getDurationOrDefault(common.EnvSnapshotInterval, snapshotInterval)

	warmup := common.DefaultWarmupSamples
	if config.Features.WarmupSamples != nil {
		warmup = *config.Features.WarmupSamples
	}
	pretrain := true
	if config.Model.Pretrain != nil {
		pretrain = *config.Model.Pretrain
	}

	thresholds := config.Features.Thresholds
	if thresholds == nil {
		thresholds = make(map[string]float64)
	}

	settings := Settings{
		DefaultThreshold: getFloatFromEnvOrConfig(common.EnvDefaultThreshold, config.Features.DefaultThreshold, common.DefaultThreshold),
		WindowSize:       getIntFromEnvOrConfig(common.EnvWindowSize, config.Features.WindowSize, common.DefaultWindowSize),
		WarmupSamples:    getIntOrDefault(common.EnvWarmupSamples, warmup),
		GracePeriod:      getIntFromEnvOrConfig(common.EnvGracePeriod, config.Model.GracePeriod, common.DefaultGracePeriod),
		Confidence:       getFloatFromEnvOrConfig(common.EnvConfidence, config.Model.Confidence, common.DefaultConfidence),
		TieThreshold:     getFloatFromEnvOrConfig(common.EnvTieThreshold, config.Model.TieThreshold, common.DefaultTieThreshold),
		MaxTreeDepth:     getIntFromEnvOrConfig(common.EnvMaxTreeDepth, config.Model.MaxTreeDepth, 0),
		MaxLeaves:        getIntFromEnvOrConfig(common.EnvMaxLeaves, config.Model.MaxLeaves, 0),
		NSplits:          getIntFromEnvOrConfig(common.EnvNSplits, config.Model.NSplits, common.DefaultNSplits),
		SplitCriterion:   getEnvOrDefault(common.EnvSplitCriterion, orDefault(config.Model.SplitCriterion, common.DefaultSplitCriterion)),
		MetricsPort:      getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		DataPath:         getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		SnapshotInterval: snapshotInterval,
		Pretrain:         getBoolOrDefault(common.EnvPretrain, pretrain),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		SourceThresholds: thresholds,
		APIKey:           os.Getenv(common.EnvAPIKey),
		APISecret:        os.Getenv(common.EnvAPISecret),
		RateLimit:        getFloatFromEnvOrConfig(common.EnvRateLimit, config.System.RateLimit, 0),
		RateBurst:        getIntFromEnvOrConfig(common.EnvRateBurst, config.System.RateBurst, common.DefaultRateBurst),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	snapshotDefault, _ := time.ParseDuration(common.DefaultSnapshotInterval)

	settings := Settings{
		DefaultThreshold: getFloatOrDefault(common.EnvDefaultThreshold, common.DefaultThreshold),
		WindowSize:       getIntOrDefault(common.EnvWindowSize, common.DefaultWindowSize),
		WarmupSamples:    getIntOrDefault(common.EnvWarmupSamples, common.DefaultWarmupSamples),
		GracePeriod:      getIntOrDefault(common.EnvGracePeriod, common.DefaultGracePeriod),
		Confidence:       getFloatOrDefault(common.EnvConfidence, common.DefaultConfidence),
		TieThreshold:     getFloatOrDefault(common.EnvTieThreshold, common.DefaultTieThreshold),
		MaxTreeDepth:     getIntOrDefault(common.EnvMaxTreeDepth, 0), // unbounded
		MaxLeaves:        getIntOrDefault(common.EnvMaxLeaves, 0),    // unbounded
		NSplits:          getIntOrDefault(common.EnvNSplits, common.DefaultNSplits),
		SplitCriterion:   getEnvOrDefault(common.EnvSplitCriterion, common.DefaultSplitCriterion),
		MetricsPort:      getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		DataPath:         os.Getenv(common.EnvDataPath), // optional
		SnapshotInterval: getDurationOrDefault(common.EnvSnapshotInterval, snapshotDefault),
		Pretrain:         getBoolOrDefault(common.EnvPretrain, true),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		SourceThresholds: make(map[string]float64),
		APIKey:           os.Getenv(common.EnvAPIKey),
		APISecret:        os.Getenv(common.EnvAPISecret),
		RateLimit:        getFloatOrDefault(common.EnvRateLimit, 0),
		RateBurst:        getIntOrDefault(common.EnvRateBurst, common.DefaultRateBurst),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// AuthEnabled reports whether operator requests must be signed.
func (s *Settings) AuthEnabled() bool {
	return s.APIKey != "" && s.APISecret != ""
}

// ThresholdFor returns the configured baseline for a source, with fallback to the default threshold
func (s *Settings) ThresholdFor(source string) float64 {
	if threshold, exists := s.SourceThresholds[source]; exists {
		return threshold
	}
	return s.DefaultThreshold
}

// ClassifierConfig maps the model settings onto the classifier's config.
func (s *Settings) ClassifierConfig() ml.Config {
	return ml.Config{
		GracePeriod:  s.GracePeriod,
		Confidence:   s.Confidence,
		TieThreshold: s.TieThreshold,
		MaxDepth:     s.MaxTreeDepth,
		MaxLeaves:    s.MaxLeaves,
		NSplits:      s.NSplits,
		Criterion:    ml.Criterion(s.SplitCriterion),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getIntOrDefault(key, defaultValue)
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getFloatOrDefault(key, defaultValue)
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.DefaultThreshold < 0 {
		return fmt.Errorf("default threshold must not be negative, got %f", settings.DefaultThreshold)
	}
	if settings.WindowSize <= 0 || settings.WindowSize > common.MaxWindowSize {
		return fmt.Errorf("window size must be between 1 and %d, got %d", common.MaxWindowSize, settings.WindowSize)
	}
	if settings.WarmupSamples < 0 || settings.WarmupSamples > common.MaxWarmupSamples {
		return fmt.Errorf("warmup samples must be between 0 and %d, got %d", common.MaxWarmupSamples, settings.WarmupSamples)
	}

	if settings.GracePeriod <= 0 || settings.GracePeriod > common.MaxGracePeriod {
		return fmt.Errorf("grace period must be between 1 and %d, got %d", common.MaxGracePeriod, settings.GracePeriod)
	}
	// confidence is a probability of choosing a wrong split; 0 and 1 make the bound meaningless
	if settings.Confidence <= 0 || settings.Confidence >= 1 {
		return fmt.Errorf("confidence must be in (0, 1), got %f", settings.Confidence)
	}
	if settings.TieThreshold < 0 || settings.TieThreshold >= 1 {
		return fmt.Errorf("tie threshold must be in [0, 1), got %f", settings.TieThreshold)
	}
	if settings.MaxTreeDepth < 0 {
		return fmt.Errorf("max tree depth must not be negative, got %d", settings.MaxTreeDepth)
	}
	if settings.MaxLeaves < 0 {
		return fmt.Errorf("max leaves must not be negative, got %d", settings.MaxLeaves)
	}
	if settings.NSplits <= 0 || settings.NSplits > common.MaxNSplits {
		return fmt.Errorf("split points must be between 1 and %d, got %d", common.MaxNSplits, settings.NSplits)
	}
	switch settings.SplitCriterion {
	case "info_gain", "gini":
	default:
		return fmt.Errorf("split criterion must be info_gain or gini, got %q", settings.SplitCriterion)
	}

	if settings.MetricsPort < common.MinMetricsPort || settings.MetricsPort > common.MaxMetricsPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinMetricsPort, common.MaxMetricsPort, settings.MetricsPort)
	}
	if settings.SnapshotInterval < time.Second || settings.SnapshotInterval > 24*time.Hour {
		return fmt.Errorf("snapshot interval must be between 1s and 24h, got %v", settings.SnapshotInterval)
	}

	if settings.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %f", settings.RateLimit)
	}
	if settings.RateLimit > 0 && settings.RateBurst < 1 {
		return fmt.Errorf("rate burst must be at least 1, got %d", settings.RateBurst)
	}
	if (settings.APIKey == "") != (settings.APISecret == "") {
		return fmt.Errorf("API_KEY and API_SECRET must be set together")
	}

	for source, threshold := range settings.SourceThresholds {
		if threshold < 0 {
			return fmt.Errorf("source %s: threshold must not be negative, got %f", source, threshold)
		}
	}

	return nil
}
