package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fuelpanel/internal/dataprocessing"
	apperrors "fuelpanel/internal/errors"
	"fuelpanel/internal/exporter"
	"fuelpanel/internal/files"
	"fuelpanel/internal/infrastructure"
	"fuelpanel/pkg/contracts/domain"
)

// ResampledDir is the directory below the output root that holds binned panels
const ResampledDir = "resampled"

// Manager orchestrates processing runs. It owns the closing state handed
// from one batch to the next and remembers which batch files it has
// processed so later runs can continue with new files only.
type Manager struct {
	cfg         *Config
	source      BatchSource
	exporter    PanelExporter
	outputDir   string
	processor   *dataprocessing.BatchProcessor
	tracer      *RunTracer
	broadcaster *StatusBroadcaster
	logger      *slog.Logger

	mu        sync.RWMutex
	current   *RunState
	latest    *RunSummary
	closing   domain.ClosingState
	seen      map[string]bool
	lastBatch string
}

// ManagerOption configures optional manager dependencies
type ManagerOption func(*Manager)

// WithHub publishes run events to hub
func WithHub(hub WebSocketHub) ManagerOption {
	return func(m *Manager) {
		m.broadcaster = NewStatusBroadcaster(hub, m.logger)
	}
}

// WithTracer sets the run tracer
func WithTracer(tracer *RunTracer) ManagerOption {
	return func(m *Manager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = infrastructure.WithComponent(logger, "operations")
		}
	}
}

// NewManager creates a run manager. Panels are exported through exp and
// binned panels are written below outputDir.
func NewManager(cfg *Config, source BatchSource, exp PanelExporter, outputDir string, opts ...ManagerOption) *Manager {
	if cfg == nil {
		cfg = NewConfig()
	}
	m := &Manager{
		cfg:       cfg,
		source:    source,
		exporter:  exp,
		outputDir: outputDir,
		logger:    infrastructure.WithComponent(slog.Default(), "operations"),
		closing:   domain.NewClosingState(),
		seen:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tracer == nil {
		m.tracer, _ = NewRunTracer(nil)
	}
	if m.broadcaster == nil {
		m.broadcaster = NewStatusBroadcaster(nil, m.logger)
	}
	m.processor = dataprocessing.NewBatchProcessor(cfg.Processing, m.logger)
	return m
}

// Closing returns the closing state after the last processed batch
func (m *Manager) Closing() domain.ClosingState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closing
}

// Latest returns the summary of the last finished run
func (m *Manager) Latest() (*RunSummary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.latest != nil
}

// Current returns a snapshot of the run in progress
func (m *Manager) Current() (RunSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return RunSnapshot{}, false
	}
	return m.current.Snapshot(), true
}

// Run processes the batch files of the input directory in chronological
// order. A rejected batch is listed in the summary and leaves the closing
// state untouched; the run carries on with the next batch. Cancelling ctx
// stops the run between batches; the outputs of the batches processed so
// far are still written.
func (m *Manager) Run(ctx context.Context, req RunRequest) (*RunSummary, error) {
	runID := uuid.New().String()
	state := NewRunState(runID)

	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return nil, ErrRunInProgress
	}
	m.current = state
	if !req.OnlyNew {
		m.closing = domain.NewClosingState()
		m.seen = make(map[string]bool)
		m.lastBatch = ""
	}
	closing := m.closing
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.current = nil
		m.mu.Unlock()
	}()

	ctx = infrastructure.ContextForRun(ctx, runID)
	ctx, span := m.tracer.TraceRun(ctx, runID, req)

	state.Start()
	summary := &RunSummary{
		ID:        runID,
		Trigger:   req.Trigger,
		StartedAt: state.StartTime,
		Processed: []BatchReport{},
		Failed:    []domain.FailedBatch{},
		Metadata:  []domain.BatchMetadata{},
	}
	finish := func(err error) (*RunSummary, error) {
		summary.FinishedAt = time.Now()
		summary.Duration = state.Duration()
		summary.Status = state.Snapshot().Status
		if err != nil {
			summary.Error = err.Error()
		}
		m.tracer.RecordRunCompletion(ctx, span, summary, summary.Duration)
		m.broadcaster.RunFinished(summary)
		m.logRunComplete(ctx, summary)

		m.mu.Lock()
		m.latest = summary
		m.mu.Unlock()
		return summary, err
	}

	state.SetStage(StageDiscovery)
	m.broadcaster.RunStatus(state)
	batches, err := m.discover(req)
	if err != nil {
		runErr := NewDiscoveryError(err)
		m.logRunError(ctx, runID, runErr)
		state.Fail(runErr)
		return finish(runErr)
	}
	summary.Discovered = len(batches)
	state.SetTotal(len(batches))
	m.logRunStart(ctx, runID, req, len(batches))

	state.SetStage(StageProcessing)
	m.broadcaster.RunStatus(state)
	progress := NewProgressTracker(StageProcessing, len(batches))
	var history domain.ClosingHistory
	var cancelErr error

	for _, file := range batches {
		if err := ctx.Err(); err != nil {
			cancelErr = NewCancellationError(err)
			break
		}

		report, result, failed := m.processFile(ctx, runID, file, closing)
		event := BatchEvent{BatchID: file.RelPath}
		if failed != nil {
			summary.Failed = append(summary.Failed, *failed)
			state.BatchDone(false)
			event.Kind = failed.Kind
			event.Reason = failed.Reason

			// Later runs with OnlyNew do not retry rejected files
			m.mu.Lock()
			m.seen[file.RelPath] = true
			m.mu.Unlock()
		} else {
			closing = closing.Merge(result.Closing)
			history.Append(file.RelPath, closing)
			summary.Processed = append(summary.Processed, report)
			summary.Metadata = append(summary.Metadata, result.Metadata)
			state.BatchDone(true)
			event.Rows = report.Rows

			m.mu.Lock()
			m.closing = closing
			m.seen[file.RelPath] = true
			m.lastBatch = file.RelPath
			m.mu.Unlock()
		}
		progress.Increment(file.RelPath)
		m.broadcaster.BatchProgress(runID, progress, event)
	}

	// Outputs are written even when the run was cancelled
	state.SetStage(StageExport)
	written, err := m.exporter.ExportRun(context.WithoutCancel(ctx), exporter.RunOutputs{
		Metadata: summary.Metadata,
		History:  history.Entries(),
		Failed:   summary.Failed,
	})
	summary.Files = written
	if err != nil {
		runErr := NewExportError(err)
		m.logRunError(ctx, runID, runErr)
		state.Fail(runErr)
		return finish(runErr)
	}

	if cancelErr != nil {
		m.logRunError(ctx, runID, cancelErr)
		state.Cancel()
		return finish(cancelErr)
	}
	state.Complete()
	return finish(nil)
}

// discover lists the batch files of the run. Files processed by an earlier
// run are skipped when only new files are requested.
func (m *Manager) discover(req RunRequest) ([]files.FileInfo, error) {
	found, err := m.source.FindBatchFiles()
	if err != nil {
		return nil, err
	}
	if !req.OnlyNew {
		return found, nil
	}

	m.mu.RLock()
	seen := make(map[string]bool, len(m.seen))
	for k, v := range m.seen {
		seen[k] = v
	}
	last := m.lastBatch
	m.mu.RUnlock()

	fresh := files.FilterUnseen(found, seen)
	if len(fresh) > 0 && last != "" && fresh[0].RelPath < last {
		m.logger.Warn("New batch sorts before the last processed batch, closing state may be out of order",
			slog.String("batch_id", fresh[0].RelPath),
			slog.String("last_batch", last))
	}
	return fresh, nil
}

// processFile runs one batch file through parsing, processing and export.
// Exactly one of result and failed is non-nil.
func (m *Manager) processFile(ctx context.Context, runID string, file files.FileInfo, closing domain.ClosingState) (BatchReport, *dataprocessing.BatchResult, *domain.FailedBatch) {
	start := time.Now()
	batchID := file.RelPath
	ctx = infrastructure.ContextForBatch(ctx, batchID)
	ctx, span := m.tracer.TraceBatch(ctx, runID, batchID, m.cfg.partitions())

	measurement := infrastructure.BatchMeasurement{BatchID: batchID}
	report, result, err := m.processBatch(ctx, file, closing, &measurement)
	measurement.Success = err == nil
	measurement.Duration = time.Since(start)
	m.tracer.RecordBatchCompletion(ctx, span, measurement, err)

	if err != nil {
		failed := &domain.FailedBatch{BatchID: batchID, Kind: failureKind(err), Reason: err.Error()}
		m.logBatchRejected(ctx, *failed, measurement.Duration)
		return BatchReport{}, nil, failed
	}

	report.Duration = measurement.Duration
	m.logBatchWarnings(ctx, batchID, result.Warnings)
	m.logBatchComplete(ctx, report)
	return report, result, nil
}

func (m *Manager) processBatch(ctx context.Context, file files.FileInfo, closing domain.ClosingState, measurement *infrastructure.BatchMeasurement) (BatchReport, *dataprocessing.BatchResult, error) {
	batch, err := dataprocessing.ParseFile(file.Path, file.RelPath, m.cfg.Processing)
	if err != nil {
		return BatchReport{}, nil, err
	}
	measurement.Observations = len(batch.Observations)

	if keep := m.cfg.subsetFilter(); keep != nil {
		batch = batch.FilterStations(keep)
		if len(batch.Observations) == 0 {
			return BatchReport{}, nil, apperrors.NewAppValidationError("no observations for the station subset").
				WithContext("batch_id", file.RelPath)
		}
	}

	result, err := processPartitioned(ctx, m.processor, batch, closing, m.cfg.partitions())
	if err != nil {
		return BatchReport{}, nil, err
	}
	measurement.Duplicates = result.Stats.Duplicates
	measurement.Rows = result.Stats.Rows
	measurement.CarriedOver = result.Stats.CarriedOver
	measurement.ZeroPrices = result.Stats.ZeroPrices
	measurement.MissingSeries = result.Stats.MissingSeries

	// Everything that can reject the batch runs before its panel is
	// published, and files already written are removed on a later failure.
	var resampled string
	if m.cfg.Resample != nil {
		binned, err := dataprocessing.Resample(result.Panel, m.cfg.Resample.Aggregations, m.cfg.Resample.Width)
		if err != nil {
			return BatchReport{}, nil, fmt.Errorf("resample %s: %w", file.RelPath, err)
		}
		resampled, err = m.writeResampled(file.RelPath, binned)
		if err != nil {
			return BatchReport{}, nil, err
		}
	}

	export, err := m.exportPanel(ctx, file.RelPath, result.Panel)
	if err != nil {
		m.discardOutputs(ctx, file.RelPath, resampled, export.Path)
		return BatchReport{}, nil, err
	}
	m.tracer.RecordExport(ctx, PanelExportInfo{Format: export.Format, SizeBytes: export.SizeBytes, Uploaded: export.Uploaded()})

	return BatchReport{
		BatchID:     file.RelPath,
		Date:        result.Metadata.Date.Format("2006-01-02"),
		Rows:        result.Stats.Rows,
		Stations:    result.Stats.Stations,
		CarriedOver: result.Stats.CarriedOver,
		ZeroPrices:  result.Stats.ZeroPrices,
		Duplicates:  result.Stats.Duplicates,
		Missing:     result.Missing,
		OutputPath:  export.Path,
		S3Key:       export.S3Key,
		SizeBytes:   export.SizeBytes,
	}, result, nil
}

// exportPanel writes the panel, retrying storage failures with backoff. On
// failure the returned export names the local file a failed upload left
// behind, if any.
func (m *Manager) exportPanel(ctx context.Context, relPath string, panel *domain.Panel) (exporter.PanelExport, error) {
	attempts := m.cfg.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		lastErr error
		partial exporter.PanelExport
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := m.cfg.Retry.GetDelay(attempt)
			m.logger.WarnContext(ctx, "export_retry",
				slog.String("batch_id", relPath),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()))
			select {
			case <-ctx.Done():
				return partial, errors.Join(lastErr, ctx.Err())
			case <-time.After(delay):
			}
		}

		export, err := m.exporter.ExportPanel(ctx, relPath, panel)
		if err == nil {
			return export, nil
		}
		lastErr = err
		if export.Path != "" {
			partial = export
		}
		if !apperrors.IsType(err, apperrors.ErrTypeStorage) {
			break
		}
	}
	return partial, lastErr
}

// writeResampled writes a binned panel below the resampled directory as
// CSV, mirroring the layout of the batch files, and returns its path
func (m *Manager) writeResampled(relPath string, binned *domain.Panel) (string, error) {
	target := resampledPath(m.outputDir, relPath)
	if _, err := m.exporter.WritePanelFile(target, binned); err != nil {
		return "", err
	}
	return target, nil
}

func resampledPath(outputDir, relPath string) string {
	rel := strings.TrimSuffix(relPath, path.Ext(relPath)) + ".csv"
	return filepath.Join(outputDir, ResampledDir, filepath.FromSlash(rel))
}

// discardOutputs removes the files written for a batch that was rejected
// afterwards. Empty paths are skipped.
func (m *Manager) discardOutputs(ctx context.Context, batchID string, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.WarnContext(ctx, "Failed to remove output of rejected batch",
				slog.String("batch_id", batchID),
				slog.String("path", p),
				slog.String("error", err.Error()))
		}
	}
}
