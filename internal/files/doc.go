// Package files provides file system operations and discovery utilities
// for fuelpanel.
//
// Discovery finds raw batch files below an input directory. The search is
// recursive and the result is ordered by relative path, so a dated layout
// such as 2014/06/2014-06-08-prices.csv comes back in chronological order.
//
// Manager writes output files. Panel files are written atomically and
// replaced on reruns; run-level files such as the metadata table are created
// without overwriting, picking a numbered name when the target exists.
//
// Example usage:
//
//	discovery := files.NewDiscovery(paths.InputDir)
//	batches, err := discovery.FindBatchFiles()
//
//	manager := files.NewManager(paths, logger)
//	written, err := manager.CreateWithoutOverwrite(paths.MetadataCSV, writeMetadata)
package files
