// Package config provides centralized configuration management for fuelpanel.
// It loads configuration from several sources, validates it, and converts it
// into the option values the processing stages take.
//
// # Configuration Sources
//
// Sources are applied in increasing order of precedence:
//
//	1. Built-in defaults (Default)
//	2. A YAML file (config.yaml, configs/config.yaml or an explicit path)
//	3. A .env file in the working directory
//	4. Environment variables (highest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern FUELPANEL_<SECTION>_<FIELD>:
//
//	FUELPANEL_PROCESSING_TIMEZONE=Europe/Berlin
//	FUELPANEL_PROCESSING_QUANTITIES=diesel,e5,e10
//	FUELPANEL_RESAMPLE_BIN_WIDTH=15min
//	FUELPANEL_RESAMPLE_AGGREGATIONS=diesel:mean,total_changes:count
//	FUELPANEL_EXPORT_S3_BUCKET=panels
//	FUELPANEL_LOGGING_LEVEL=debug
//
// # Path Management
//
// PathsConfig holds the configured directories. Resolve turns them into
// absolute Paths, which also name the run-level output files:
//
//	paths, err := cfg.Paths.Resolve("")
//	err = paths.EnsureDirectories()
//	out := paths.OutputPath("2014/06/2014-06-08-prices.csv", ".parquet")
//
// # Validation
//
// Validate runs struct-tag rules plus two domain rules registered on the
// validator: "binwidth" accepts any width the resampler can tile a day with,
// and "aggregation" accepts the known aggregation functions. Every failure is
// a CONFIG error naming the offending field.
package config
