package operations

import (
	"context"
	"hash/fnv"

	"golang.org/x/sync/errgroup"

	"fuelpanel/internal/dataprocessing"
	"fuelpanel/pkg/contracts/domain"
)

// partitionOf maps a station id to one of n partitions. The mapping only
// depends on the id so a station stays in the same partition across batches.
func partitionOf(station string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(station))
	return int(h.Sum32() % uint32(n))
}

type partition struct {
	index int
	batch *domain.Batch
}

// partitionBatch splits a batch into n disjoint station groups. Groups
// without observations are dropped.
func partitionBatch(batch *domain.Batch, n int) []partition {
	if n <= 1 {
		return []partition{{index: 0, batch: batch}}
	}
	parts := make([]partition, 0, n)
	for i := 0; i < n; i++ {
		idx := i
		part := batch.FilterStations(func(station string) bool {
			return partitionOf(station, n) == idx
		})
		if len(part.Observations) > 0 {
			parts = append(parts, partition{index: idx, batch: part})
		}
	}
	return parts
}

// processPartitioned runs the batch processor over every station partition
// concurrently, each against its own slice of the closing state, and
// combines the partial results. Timestamps are placed once for the whole
// batch and every partition is stratified against the shared time axis, so
// the combined panel is the same cross product a single pass builds. The
// first error rejects the whole batch.
func processPartitioned(ctx context.Context, processor *dataprocessing.BatchProcessor, batch *domain.Batch, closing domain.ClosingState, n int) (*dataprocessing.BatchResult, error) {
	if n <= 1 {
		return processor.Process(batch, closing)
	}
	placed, axis, err := dataprocessing.PlaceTimestamps(batch, processor.Options())
	if err != nil {
		return nil, err
	}
	parts := partitionBatch(placed, n)
	if len(parts) <= 1 {
		return processor.Process(batch, closing)
	}

	results := make([]*dataprocessing.BatchResult, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	for i, part := range parts {
		i, part := i, part
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			own := closing.Filter(func(station string) bool {
				return partitionOf(station, n) == part.index
			})
			res, err := processor.ProcessOnAxis(part.batch, own, axis)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return combineResults(batch.ID, results, processor.Options())
}

// combineResults merges the partial results of one batch. Partitions are
// disjoint in stations so closing states are a plain union.
func combineResults(batchID string, results []*dataprocessing.BatchResult, opts dataprocessing.Options) (*dataprocessing.BatchResult, error) {
	panels := make([]*domain.Panel, 0, len(results))
	combined := &dataprocessing.BatchResult{BatchID: batchID}
	closing := domain.NewClosingState()

	for _, res := range results {
		panels = append(panels, res.Panel)
		closing = closing.Merge(res.Closing)
		combined.Missing = append(combined.Missing, res.Missing...)
		combined.Warnings = append(combined.Warnings, res.Warnings...)

		combined.Stats.Observations += res.Stats.Observations
		combined.Stats.Duplicates += res.Stats.Duplicates
		combined.Stats.Stations += res.Stats.Stations
		combined.Stats.CarriedOver += res.Stats.CarriedOver
		combined.Stats.ZeroPrices += res.Stats.ZeroPrices
		combined.Stats.MissingSeries += res.Stats.MissingSeries
	}

	panel, err := dataprocessing.Merge(panels...)
	if err != nil {
		return nil, err
	}
	meta, err := dataprocessing.ExtractMetadata(panel, batchID, opts.Quantities, opts.Location)
	if err != nil {
		return nil, err
	}

	combined.Stats.Rows = panel.Len()
	combined.Stats.Timestamps = len(panel.Times())
	combined.Panel = panel
	combined.Metadata = meta
	combined.Closing = closing
	return combined, nil
}
