package pipeline

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the externally supplied pipeline configuration for a knee
// discovery run. It is read once at startup and treated as read-only.
type Config struct {
	Verbose    bool             `mapstructure:"verbose"`
	Preprocess PreprocessConfig `mapstructure:"preprocess"`
	Discovery  DiscoveryConfig  `mapstructure:"knee_discovery"`
	Eval       EvalConfig       `mapstructure:"eval"`
}

// PreprocessConfig locates the preprocessed validation set and names the
// directory layout the degrader writes into.
type PreprocessConfig struct {
	// Method is the preprocessing method the baseline set was built with:
	// "padding" or "tiling".
	Method string `mapstructure:"method"`

	// ImageSize is the square baseline resolution in pixels.
	ImageSize int `mapstructure:"image_size"`

	// Stride applies to the tiling method only.
	Stride int `mapstructure:"stride"`

	// Dir is the top-level preprocessing directory.
	Dir string `mapstructure:"dir"`

	// ValBaselineSubdir is the baseline subdirectory template. Placeholders:
	// {width}, {height}, {stride}.
	ValBaselineSubdir string `mapstructure:"val_baseline_subdir"`

	// ValDegradedSubdir is the degraded subdirectory template. Placeholders:
	// {width}, {height}, {effwidth}, {effheight}, {stride}.
	ValDegradedSubdir string `mapstructure:"val_degraded_subdir"`
}

// DiscoveryConfig tunes the sweep and the refinement loop.
type DiscoveryConfig struct {
	OutputDir           string  `mapstructure:"output_dir"`
	OutputSubdir        string  `mapstructure:"output_subdir"`
	EvalResultsFilename string  `mapstructure:"eval_results_filename"`
	KneeLogFilename     string  `mapstructure:"knee_log_filename"`
	CleanSubdir         bool    `mapstructure:"clean_subdir"`
	CacheResults        bool    `mapstructure:"cache_results"`
	PlotCurves          bool    `mapstructure:"plot_curves"`

	// SearchResolutionRange is the coarse sweep range as fractions of the
	// longer baseline edge, low then high, each in (0, 1].
	SearchResolutionRange []float64 `mapstructure:"search_resolution_range"`

	// SearchResolutionStep is the sweep step as a fraction of the longer edge.
	SearchResolutionStep float64 `mapstructure:"search_resolution_step"`

	// SearchAlgorithm selects the refinement strategy: "binary" to bisect
	// around the initial knee estimate, empty to keep the coarse estimate.
	SearchAlgorithm string `mapstructure:"search_algorithm"`

	// NoiseFloor excludes metrics at or below this level from detection.
	NoiseFloor float64 `mapstructure:"noise_floor"`

	// FactorTolerance is the knee-factor convergence tolerance.
	FactorTolerance float64 `mapstructure:"factor_tolerance"`

	// MetricTolerance is the metric-change convergence tolerance.
	MetricTolerance float64 `mapstructure:"metric_tolerance"`

	// LocateTolerance matches a knee factor back to a sampled row.
	LocateTolerance float64 `mapstructure:"locate_tolerance"`

	// DuplicateTolerance rejects bisection midpoints indistinguishable from
	// an existing sample.
	DuplicateTolerance float64 `mapstructure:"duplicate_tolerance"`

	// MaxIterations caps the refinement loop per class.
	MaxIterations int `mapstructure:"max_iterations"`
}

// EvalConfig describes the external evaluation oracle invocation.
type EvalConfig struct {
	// Command is the executable run for each evaluation.
	Command string `mapstructure:"command"`

	// Args are passed to Command after placeholder expansion. Placeholders:
	// {width}, {height}, {effwidth}, {effheight}, {dir}, {tag}, {results}.
	Args []string `mapstructure:"args"`
}

// LoadConfig reads and validates the YAML pipeline configuration at path.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("preprocess.method", "padding")
	v.SetDefault("preprocess.val_baseline_subdir", "val_baseline_{width}x{height}")
	v.SetDefault("preprocess.val_degraded_subdir", "val_degraded_{width}x{height}_{effwidth}x{effheight}")
	v.SetDefault("knee_discovery.output_subdir", "knee_discovery")
	v.SetDefault("knee_discovery.eval_results_filename", "eval_results.csv")
	v.SetDefault("knee_discovery.knee_log_filename", "knee_events.csv")
	v.SetDefault("knee_discovery.search_resolution_range", []float64{0.2, 1.0})
	v.SetDefault("knee_discovery.search_resolution_step", 0.2)
	v.SetDefault("knee_discovery.noise_floor", 0.01)
	v.SetDefault("knee_discovery.factor_tolerance", 1e-2)
	v.SetDefault("knee_discovery.metric_tolerance", 1e-3)
	v.SetDefault("knee_discovery.locate_tolerance", 1e-5)
	v.SetDefault("knee_discovery.duplicate_tolerance", 1e-4)
	v.SetDefault("knee_discovery.max_iterations", 10)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Preprocess.Method {
	case "padding":
	case "tiling":
		if c.Preprocess.Stride <= 0 {
			return fmt.Errorf("tiling method requires a positive stride")
		}
	default:
		return fmt.Errorf("unknown preprocessing method: %s", c.Preprocess.Method)
	}
	if c.Preprocess.ImageSize <= 0 {
		return fmt.Errorf("preprocess.image_size must be positive")
	}
	r := c.Discovery.SearchResolutionRange
	if len(r) != 2 || r[0] <= 0 || r[1] > 1 || r[0] > r[1] {
		return fmt.Errorf("search_resolution_range must be [low, high] with 0 < low <= high <= 1")
	}
	if c.Discovery.SearchResolutionStep <= 0 {
		return fmt.Errorf("search_resolution_step must be positive")
	}
	if c.Discovery.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive")
	}
	if s := c.Discovery.SearchAlgorithm; s != "" && s != "binary" {
		return fmt.Errorf("unknown search_algorithm: %s", s)
	}
	return nil
}
