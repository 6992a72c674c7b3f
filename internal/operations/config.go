package operations

import (
	"path/filepath"
	"time"

	"fuelpanel/internal/config"
	"fuelpanel/internal/dataprocessing"
	"fuelpanel/internal/files"
)

// Defaults for the run configuration
const (
	DefaultPartitions    = 1
	MaxPartitions        = 64
	DefaultUploadRetries = 3
	DefaultRetryDelay    = 2 * time.Second
	DefaultMaxRetryDelay = 30 * time.Second
)

// ResampleConfig enables binning of every processed panel
type ResampleConfig struct {
	Width        time.Duration
	Aggregations dataprocessing.AggregationMap
}

// RetryConfig controls retries of transient export failures
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultUploadRetries,
		InitialDelay: DefaultRetryDelay,
		MaxDelay:     DefaultMaxRetryDelay,
		Multiplier:   2.0,
	}
}

// GetDelay returns the delay before the given retry attempt
func (r RetryConfig) GetDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := r.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * r.Multiplier)
		if delay > r.MaxDelay {
			return r.MaxDelay
		}
	}
	return delay
}

// Config represents the run configuration
type Config struct {
	// Processing holds the per-batch stage options
	Processing dataprocessing.Options

	// Partitions is the number of disjoint station groups processed
	// concurrently within one batch
	Partitions int

	// StationSubset restricts processing to these stations when non-empty
	StationSubset []string

	// Resample, when set, also writes a binned panel for every batch below
	// the resampled directory of the output tree
	Resample *ResampleConfig

	// Retry applies to panel exports
	Retry RetryConfig
}

// NewConfig returns the default run configuration
func NewConfig() *Config {
	return &Config{
		Processing: dataprocessing.DefaultOptions(),
		Partitions: DefaultPartitions,
		Retry:      NewRetryConfig(),
	}
}

// ConfigFrom builds the run configuration from the application
// configuration. A relative station subset file is read relative to the
// base directory of paths.
func ConfigFrom(cfg *config.Config, paths *config.Paths) (*Config, error) {
	opts, err := cfg.ProcessingOptions()
	if err != nil {
		return nil, err
	}

	c := NewConfig()
	c.Processing = opts
	c.Partitions = cfg.Processing.Partitions
	c.StationSubset = append(c.StationSubset, cfg.Processing.StationSubset...)

	if file := cfg.Processing.StationSubsetFile; file != "" {
		if !filepath.IsAbs(file) && paths != nil {
			file = filepath.Join(paths.BaseDir, file)
		}
		stations, err := files.ReadStationSubset(file, opts.StationColumn)
		if err != nil {
			return nil, err
		}
		c.StationSubset = append(c.StationSubset, stations...)
	}

	if cfg.Resample.Enabled {
		width, aggs, err := cfg.ResampleSettings()
		if err != nil {
			return nil, err
		}
		c.Resample = &ResampleConfig{Width: width, Aggregations: aggs}
	}
	return c, nil
}

// partitions returns the partition count clamped to its valid range
func (c *Config) partitions() int {
	switch {
	case c.Partitions < 1:
		return 1
	case c.Partitions > MaxPartitions:
		return MaxPartitions
	default:
		return c.Partitions
	}
}

// subsetFilter returns the station filter, or nil when every station is kept
func (c *Config) subsetFilter() func(string) bool {
	if len(c.StationSubset) == 0 {
		return nil
	}
	keep := make(map[string]bool, len(c.StationSubset))
	for _, s := range c.StationSubset {
		keep[s] = true
	}
	return func(station string) bool { return keep[station] }
}
