// Package dataprocessing reconstructs dense fuel price panels from sparse
// per-station price reports.
//
// Stations only report a price when it changes, so a raw batch is an event
// log. This package turns each batch into a panel with one row per station
// and per timestamp seen in the batch, carries the last known prices over
// from the previous batch and removes the remaining gaps.
//
// # Stages
//
// The stages are plain functions over domain types and can be used on their
// own:
//
//  1. Stratify: sparse observations to the station × timestamp cross product
//  2. ResolveOpening: seed the first row of each station from the closing state
//  3. FillGaps: directional fill per station plus active indicators
//  4. ExtractMetadata and ExtractClosingState: batch summary and carry-over state
//  5. Resample: aggregate into fixed-width bins on a complete grid
//  6. Merge and Split: combine processed panels or split them by column token
//
// BatchProcessor chains stages 1 to 4 for one batch.
//
// # Usage
//
//	opts := dataprocessing.DefaultOptions()
//	batch, err := dataprocessing.ParseFile("2014/06/2014-06-08-prices.csv", "2014-06-08", opts)
//	if err != nil {
//	    return err
//	}
//	result, err := dataprocessing.NewBatchProcessor(opts, logger).Process(batch, closing)
//	if err != nil {
//	    return err
//	}
//	closing = closing.Merge(result.Closing)
//
// # Missing values
//
// Missing cells hold NaN. A price of exactly zero is a reporting artifact and
// is treated as missing before the active indicators are derived, so an
// indicator of 0 means the station did not sell the fuel at that time.
//
// # Time zones
//
// Timestamps are placed in Options.Location. Civil times inside the repeated
// hour of a daylight saving change are ordered by their position in the
// batch; civil times inside the skipped hour are moved past it.
package dataprocessing
