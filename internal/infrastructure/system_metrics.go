package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SystemMetrics records Go runtime gauges alongside the batch metrics.
type SystemMetrics struct {
	goRoutines    metric.Int64Gauge
	heapInUse     metric.Int64Gauge
	memorySystem  metric.Int64Gauge
	gcPause       metric.Float64Histogram
	processUptime metric.Float64Gauge

	startTime time.Time
	mu        sync.Mutex
	lastGC    uint32
}

// NewSystemMetrics creates a new system metrics collector
func NewSystemMetrics(meter metric.Meter) (*SystemMetrics, error) {
	goRoutines, err := meter.Int64Gauge(
		"system_goroutines",
		metric.WithDescription("Number of active goroutines"),
	)
	if err != nil {
		return nil, err
	}

	heapInUse, err := meter.Int64Gauge(
		"system_heap_inuse_bytes",
		metric.WithDescription("Heap memory in use in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	memorySystem, err := meter.Int64Gauge(
		"system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	gcPause, err := meter.Float64Histogram(
		"system_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	processUptime, err := meter.Float64Gauge(
		"system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &SystemMetrics{
		goRoutines:    goRoutines,
		heapInUse:     heapInUse,
		memorySystem:  memorySystem,
		gcPause:       gcPause,
		processUptime: processUptime,
		startTime:     time.Now(),
	}, nil
}

// SystemStats holds current system statistics
type SystemStats struct {
	GoRoutines    int64     `json:"goroutines"`
	HeapInUseMB   int64     `json:"heap_inuse_mb"`
	MemorySysMB   int64     `json:"memory_system_mb"`
	GCCount       uint32    `json:"gc_count"`
	LastGCPauseMS int64     `json:"last_gc_pause_ms"`
	CPUCount      int       `json:"cpu_count"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// Collect samples the runtime, records the gauges and returns the sample.
// A nil receiver only samples.
func (sm *SystemMetrics) Collect(ctx context.Context) SystemStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	start := processStart
	if sm != nil {
		start = sm.startTime
	}
	lastPause := time.Duration(memStats.PauseNs[(memStats.NumGC+255)%256])

	stats := SystemStats{
		GoRoutines:    int64(runtime.NumGoroutine()),
		HeapInUseMB:   int64(memStats.HeapInuse) / 1024 / 1024,
		MemorySysMB:   int64(memStats.Sys) / 1024 / 1024,
		GCCount:       memStats.NumGC,
		LastGCPauseMS: lastPause.Milliseconds(),
		CPUCount:      runtime.NumCPU(),
		UptimeSeconds: time.Since(start).Seconds(),
		Timestamp:     time.Now(),
	}
	if sm == nil {
		return stats
	}

	sm.goRoutines.Record(ctx, stats.GoRoutines)
	sm.heapInUse.Record(ctx, int64(memStats.HeapInuse))
	sm.memorySystem.Record(ctx, int64(memStats.Sys))
	sm.processUptime.Record(ctx, stats.UptimeSeconds)

	// Only record a pause once per collection cycle
	sm.mu.Lock()
	if memStats.NumGC != sm.lastGC && lastPause > 0 {
		sm.gcPause.Record(ctx, lastPause.Seconds())
		sm.lastGC = memStats.NumGC
	}
	sm.mu.Unlock()

	return stats
}

var processStart = time.Now()

// SystemMetricsCollector manages periodic system metrics collection
type SystemMetricsCollector struct {
	metrics  *SystemMetrics
	interval time.Duration
	stopCh   chan struct{}
}

// NewSystemMetricsCollector creates a new system metrics collector
func NewSystemMetricsCollector(meter metric.Meter, interval time.Duration) (*SystemMetricsCollector, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("collection interval must be positive, got %s", interval)
	}
	metrics, err := NewSystemMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create system metrics: %w", err)
	}

	return &SystemMetricsCollector{
		metrics:  metrics,
		interval: interval,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start collects until Stop is called or ctx is done. It blocks.
func (smc *SystemMetricsCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(smc.interval)
	defer ticker.Stop()

	smc.metrics.Collect(ctx)

	for {
		select {
		case <-ticker.C:
			smc.metrics.Collect(ctx)
		case <-smc.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collection
func (smc *SystemMetricsCollector) Stop() {
	close(smc.stopCh)
}

// Stats returns a fresh sample
func (smc *SystemMetricsCollector) Stats(ctx context.Context) SystemStats {
	return smc.metrics.Collect(ctx)
}
