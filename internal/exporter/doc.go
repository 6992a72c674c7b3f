// Package exporter writes processed price panels and run summaries.
//
// Panels are written as CSV or Parquet below the output directory, mirroring
// the layout of the raw batch files, and can be uploaded to an S3 bucket.
// The CSV form carries the station and time key columns, timestamps with
// their UTC offset and empty cells for missing values, so it reads back with
// dataprocessing.ParsePanelCSV.
//
// At the end of a run the per-batch metadata, the closing price history and
// the list of rejected batches are written to the metadata directory as CSV
// files and as one xlsx workbook. These files are never overwritten.
//
// Example usage:
//
//	exp := exporter.NewExporter(cfg.Export, exporter.DefaultKeyColumns(), quantities, manager, nil, logger)
//	result, err := exp.ExportPanel(ctx, "2014/06/2014-06-08-prices.csv", panel)
//
//	written, err := exp.ExportRun(ctx, exporter.RunOutputs{Metadata: metas, History: history.Entries()})
package exporter
