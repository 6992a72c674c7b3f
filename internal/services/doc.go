// Package services holds the directory level panel tools that run after the
// processor: splitting wide panels into one panel per quantity, resampling
// them into equidistant bins and merging a directory into a single panel.
//
// # Layout
//
// The tools follow the output tree of the processor:
//
//	processed/2014/06/2014-06-08-prices.csv
//	split/diesel/2014/06/2014-06-08-prices.csv      (Split)
//	resampled/diesel/2014/06/2014-06-08-prices.csv  (Resample)
//	merged/diesel.csv                               (Merge)
//
// Every tool reads with dataprocessing.ParsePanelCSV and writes through a
// PanelWriter, normally the exporter, so the outputs read back the same way.
//
// # Errors
//
// An empty source directory is a NOT_FOUND AppError. Parsing and schema
// errors carry the relative path of the offending file.
package services
