package common

// Metric names understood by the threshold store
const (
	MetricBitsPerSec = "bits_per_sec"
)

// Feature names produced by the feature layer
const (
	FeatureRelativeToMin = "relative_to_min"
)

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvDefaultThreshold = "DEFAULT_THRESHOLD"
	EnvWindowSize       = "WINDOW_SIZE"
	EnvGracePeriod      = "GRACE_PERIOD"
	EnvConfidence       = "CONFIDENCE"
	EnvTieThreshold     = "TIE_THRESHOLD"
	EnvMaxTreeDepth     = "MAX_TREE_DEPTH"
	EnvMaxLeaves        = "MAX_LEAVES"
	EnvNSplits          = "N_SPLITS"
	EnvSplitCriterion   = "SPLIT_CRITERION"
	EnvWarmupSamples    = "WARMUP_SAMPLES"
	EnvMetricsPort      = "METRICS_PORT"
	EnvDataPath         = "DATA_PATH"
	EnvSnapshotInterval = "SNAPSHOT_INTERVAL"
	EnvPretrain         = "PRETRAIN"
	EnvLogLevel         = "LOG_LEVEL"
	EnvServerURL        = "LINKQUAL_URL"
	EnvAPIKey           = "API_KEY"
	EnvAPISecret        = "API_SECRET"
	EnvRateLimit        = "RATE_LIMIT"
	EnvRateBurst        = "RATE_BURST"
)

// Configuration defaults
const (
	DefaultThreshold        = 500000.0 // 500 kbps
	DefaultWindowSize       = 1000
	DefaultGracePeriod      = 1
	DefaultConfidence       = 0.05
	DefaultTieThreshold     = 0.05
	DefaultNSplits          = 10
	DefaultSplitCriterion   = "info_gain"
	DefaultWarmupSamples    = 5
	DefaultMetricsPort      = 8080
	DefaultSnapshotInterval = "1m"
	DefaultLogLevel         = "info"
	DefaultServerURL        = "http://localhost:8080"
	DefaultRateBurst        = 20
	DefaultDedupWindow      = 4096
)

// Label names used by the synthetic pre-training set
const (
	LabelBad     = "bad"
	LabelAverage = "average"
	LabelGood    = "good"
)

// Validation constants
const (
	MinMetricsPort   = 1024
	MaxMetricsPort   = 65535
	MaxWindowSize    = 1_000_000
	MaxGracePeriod   = 100_000
	MaxNSplits       = 1000
	MaxWarmupSamples = 10_000

	// MaxRelativeToMin caps the ratio feature so running statistics stay finite.
	MaxRelativeToMin = 1e12
)
