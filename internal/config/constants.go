package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "fuelpanel"
	AppVersion = "1.0.0"

	// Well-known output files written at the end of a run
	MetadataCSVName       = "prices_metadata.csv"
	MetadataWorkbookName  = "prices_metadata.xlsx"
	ClosingHistoryCSVName = "closing_prices.csv"
	FailedBatchesName     = "failed_batches.txt"

	// Directories of the panel tools, next to the output directory
	SplitDirName     = "split"
	ResampledDirName = "resampled"
	MergedDirName    = "merged"

	// Batch file extensions accepted by discovery
	BatchExtCSV  = ".csv"
	BatchExtXLSX = ".xlsx"

	// API Endpoints
	APIBasePath       = "/api/v1"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"

	// WebSocket settings
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024
	WebSocketPingPeriod      = 30 * time.Second
	WebSocketPongWait        = 60 * time.Second
	WebSocketWriteWait       = 10 * time.Second

	// Scheduling
	MinScheduleInterval = time.Minute
)
