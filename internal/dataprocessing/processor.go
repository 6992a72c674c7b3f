package dataprocessing

import (
	"io"
	"log/slog"
	"time"

	"fuelpanel/pkg/contracts/domain"
)

// BatchResult is everything one successful batch produces.
type BatchResult struct {
	BatchID  string
	Panel    *domain.Panel
	Metadata domain.BatchMetadata
	// Closing holds the last row of every station seen in this batch only.
	// Callers merge it onto the previous snapshot.
	Closing  domain.ClosingState
	Missing  []domain.MissingSeries
	Warnings []error
	Stats    BatchStatistics
}

// BatchProcessor chains the per-batch stages: stratification, opening
// carry-over, gap filling and summary extraction.
type BatchProcessor struct {
	opts   Options
	logger *slog.Logger
}

// NewBatchProcessor creates a processor. A nil logger uses slog.Default.
func NewBatchProcessor(opts Options, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		opts:   opts,
		logger: logger.With(slog.String("component", "batch_processor")),
	}
}

// Options returns the options the processor was built with.
func (p *BatchProcessor) Options() Options {
	return p.opts
}

// Process runs one batch against the closing snapshot of the previous batch.
// The snapshot is only read. A returned error rejects the whole batch and no
// partial result is produced.
func (p *BatchProcessor) Process(batch *domain.Batch, closing domain.ClosingState) (*BatchResult, error) {
	return p.process(batch, closing, nil)
}

// ProcessOnAxis processes a station subset of a batch against the time axis
// of the whole batch, as returned by PlaceTimestamps. Every station gets a
// row for every instant of the axis.
func (p *BatchProcessor) ProcessOnAxis(batch *domain.Batch, closing domain.ClosingState, axis []time.Time) (*BatchResult, error) {
	if axis == nil {
		axis = []time.Time{}
	}
	return p.process(batch, closing, axis)
}

func (p *BatchProcessor) process(batch *domain.Batch, closing domain.ClosingState, axis []time.Time) (*BatchResult, error) {
	log := p.logger.With(slog.String("batch", batch.ID))

	panel, stats, err := stratify(batch, p.opts, axis)
	if err != nil {
		log.Error("Batch rejected during stratification", slog.String("error", err.Error()))
		return nil, err
	}
	if stats.Duplicates > 0 {
		log.Info("Resolved duplicate observations", slog.Int("duplicates", stats.Duplicates))
	}

	if closing.IsEmpty() {
		log.Debug("No closing state, skipping opening carry-over")
	}
	panel, stats.CarriedOver = resolveOpening(panel, closing, p.opts.Quantities)

	filled, report, err := FillGaps(panel, p.opts.Quantities)
	if err != nil {
		return nil, err
	}
	stats.ZeroPrices = report.ZeroPrices
	stats.MissingSeries = len(report.Missing)

	warnings := report.Warnings(batch.ID)
	for _, m := range report.Missing {
		log.Warn("Station has no observation for quantity",
			slog.String("station", m.Station),
			slog.String("quantity", m.Quantity))
	}

	meta, err := ExtractMetadata(filled, batch.ID, p.opts.Quantities, p.opts.location())
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		BatchID:  batch.ID,
		Panel:    filled,
		Metadata: meta,
		Closing:  ExtractClosingState(filled, p.opts.Quantities),
		Missing:  report.Missing,
		Warnings: warnings,
		Stats:    stats,
	}

	log.Info("Batch processed",
		slog.Int("observations", stats.Observations),
		slog.Int("stations", stats.Stations),
		slog.Int("timestamps", stats.Timestamps),
		slog.Int("rows", stats.Rows),
		slog.Int("carried_over", stats.CarriedOver),
		slog.Int("zero_prices", stats.ZeroPrices))
	return result, nil
}

// ProcessBatch is a convenience wrapper around a processor without logging.
func ProcessBatch(batch *domain.Batch, closing domain.ClosingState, opts Options) (*BatchResult, error) {
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBatchProcessor(opts, discard).Process(batch, closing)
}
