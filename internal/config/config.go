package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"fuelpanel/internal/dataprocessing"
	apperrors "fuelpanel/internal/errors"
	"fuelpanel/pkg/contracts/domain"
)

// EnvPrefix namespaces every environment variable, e.g. FUELPANEL_LOGGING_LEVEL.
const EnvPrefix = "FUELPANEL"

// Config represents the complete application configuration
type Config struct {
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Processing ProcessingConfig `yaml:"processing" envconfig:"PROCESSING"`
	Resample   ResampleConfig   `yaml:"resample" envconfig:"RESAMPLE"`
	Export     ExportConfig     `yaml:"export" envconfig:"EXPORT"`
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format     string `yaml:"format" envconfig:"FORMAT" validate:"eq=json"`
	Output     string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath   string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB" validate:"gte=1"`
	MaxAgeDays int    `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" envconfig:"MAX_BACKUPS" validate:"gte=0"`
	Compress   bool   `yaml:"compress" envconfig:"COMPRESS"`
}

// ProcessingConfig describes the raw batches and how they are processed.
type ProcessingConfig struct {
	StationColumn string   `yaml:"station_column" envconfig:"STATION_COLUMN" validate:"required"`
	TimeColumn    string   `yaml:"time_column" envconfig:"TIME_COLUMN" validate:"required,nefield=StationColumn"`
	Quantities    []string `yaml:"quantities" envconfig:"QUANTITIES" validate:"min=1,unique,dive,required"`
	Timezone      string   `yaml:"timezone" envconfig:"TIMEZONE" validate:"timezone"`

	// StationSubset restricts processing to the listed stations. The list
	// may also be read from the first column of StationSubsetFile.
	StationSubset     []string `yaml:"station_subset" envconfig:"STATION_SUBSET"`
	StationSubsetFile string   `yaml:"station_subset_file" envconfig:"STATION_SUBSET_FILE"`

	// Partitions splits the stations of a batch into disjoint groups that
	// are processed concurrently.
	Partitions int `yaml:"partitions" envconfig:"PARTITIONS" validate:"gte=1,lte=64"`
}

// ResampleConfig configures the optional binning stage.
type ResampleConfig struct {
	Enabled      bool              `yaml:"enabled" envconfig:"ENABLED"`
	BinWidth     string            `yaml:"bin_width" envconfig:"BIN_WIDTH" validate:"binwidth"`
	Aggregations map[string]string `yaml:"aggregations" envconfig:"AGGREGATIONS" validate:"dive,keys,required,endkeys,aggregation"`
	SplitTokens  []string          `yaml:"split_tokens" envconfig:"SPLIT_TOKENS" validate:"dive,required"`
}

// ExportConfig selects the panel file format and the optional S3 upload.
type ExportConfig struct {
	Format      string   `yaml:"format" envconfig:"FORMAT" validate:"oneof=csv parquet"`
	Compression string   `yaml:"compression" envconfig:"COMPRESSION" validate:"oneof=snappy gzip uncompressed"`
	S3          S3Config `yaml:"s3" envconfig:"S3"`
}

// S3Config holds the bucket processed panels are uploaded to.
type S3Config struct {
	Enabled         bool   `yaml:"enabled" envconfig:"ENABLED"`
	Bucket          string `yaml:"bucket" envconfig:"BUCKET" validate:"required_if=Enabled true"`
	Prefix          string `yaml:"prefix" envconfig:"PREFIX"`
	Region          string `yaml:"region" envconfig:"REGION" validate:"required_if=Enabled true"`
	Endpoint        string `yaml:"endpoint" envconfig:"ENDPOINT" validate:"omitempty,url"`
	AccessKeyID     string `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `yaml:"use_path_style" envconfig:"USE_PATH_STYLE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	// AllowedOrigins limits CORS and websocket origins; empty allows any.
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	// QueueSize bounds the number of pending runs.
	QueueSize int `yaml:"queue_size" envconfig:"QUEUE_SIZE" validate:"gte=1"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=1"`
}

// TelemetryConfig toggles tracing and metrics.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	TracesEnabled  bool   `yaml:"traces_enabled" envconfig:"TRACES_ENABLED"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// Load builds the configuration. Sources are applied in increasing order of
// precedence: built-in defaults, the YAML file, a .env file, then the process
// environment. An empty path searches the usual config locations.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewConfigError("failed to read .env file", err)
	}

	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to load config file", err).WithContext("path", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays the keys present in a YAML file onto cfg. An
// aggregation map in the file replaces the default map instead of being
// merged into it.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	var probe struct {
		Resample struct {
			Aggregations map[string]string `yaml:"aggregations"`
		} `yaml:"resample"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Resample.Aggregations != nil {
		cfg.Resample.Aggregations = nil
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Validate checks struct tags and the cross-field rules.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.NewConfigError(
				fmt.Sprintf("invalid value for %s (rule %s)", fe.Namespace(), fe.Tag()), err).
				WithContext("field", fe.Namespace())
		}
		return apperrors.NewConfigError("config validation failed", err)
	}
	if c.Resample.Enabled && len(c.Resample.Aggregations) == 0 {
		return apperrors.NewConfigError("resampling needs at least one aggregation", nil)
	}
	if c.Resample.Enabled {
		if _, _, err := c.ResampleSettings(); err != nil {
			return apperrors.NewConfigError("invalid resample settings", err).
				WithContext("field", "Config.Resample.Aggregations")
		}
	}
	return nil
}

// ProcessingOptions builds the per-call stage options. Each call returns a
// fresh value.
func (c *Config) ProcessingOptions() (dataprocessing.Options, error) {
	loc, err := time.LoadLocation(c.Processing.Timezone)
	if err != nil {
		return dataprocessing.Options{}, apperrors.NewConfigError("unknown timezone", err).
			WithContext("timezone", c.Processing.Timezone)
	}
	quantities := make([]string, len(c.Processing.Quantities))
	copy(quantities, c.Processing.Quantities)
	return dataprocessing.Options{
		StationColumn: c.Processing.StationColumn,
		TimeColumn:    c.Processing.TimeColumn,
		Quantities:    quantities,
		Location:      loc,
	}, nil
}

// ResampleSettings parses the bin width and aggregation map. Every mapped
// column must be a quantity, an indicator or the change count.
func (c *Config) ResampleSettings() (time.Duration, dataprocessing.AggregationMap, error) {
	width, err := dataprocessing.ParseBinWidth(c.Resample.BinWidth)
	if err != nil {
		return 0, nil, err
	}
	aggs := make(dataprocessing.AggregationMap, len(c.Resample.Aggregations))
	for col, name := range c.Resample.Aggregations {
		agg, err := dataprocessing.ParseAggregation(name)
		if err != nil {
			return 0, nil, err
		}
		aggs[col] = agg
	}
	if len(aggs) == 0 {
		aggs = dataprocessing.DefaultAggregations(c.Processing.Quantities)
	}
	if err := aggs.CheckColumns(c.Processing.Quantities); err != nil {
		return 0, nil, err
	}
	return width, aggs, nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "console",
			FilePath:   "logs/fuelpanel.log",
			MaxSizeMB:  100,
			MaxAgeDays: 14,
			MaxBackups: 5,
			Compress:   true,
		},
		Paths: PathsConfig{
			InputDir:    "data/raw",
			OutputDir:   "data/processed",
			MetadataDir: "data/metadata",
		},
		Processing: ProcessingConfig{
			StationColumn: domain.DefaultStationColumn,
			TimeColumn:    domain.DefaultTimeColumn,
			Quantities:    []string{"diesel", "e5", "e10"},
			Timezone:      dataprocessing.DefaultTimezone,
			Partitions:    1,
		},
		Resample: ResampleConfig{
			BinWidth:     "1h",
			Aggregations: defaultAggregations(),
			SplitTokens:  []string{"diesel", "e5", "e10"},
		},
		Export: ExportConfig{
			Format:      "csv",
			Compression: "snappy",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			QueueSize:       4,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			TracesEnabled:  false,
			MetricsEnabled: true,
		},
	}
}

func defaultAggregations() map[string]string {
	out := make(map[string]string)
	for col, agg := range dataprocessing.DefaultAggregations([]string{"diesel", "e5", "e10"}) {
		out[col] = string(agg)
	}
	return out
}
