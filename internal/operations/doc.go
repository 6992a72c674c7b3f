// Package operations runs the batch pipeline over an input directory.
//
// A run discovers the raw batch files, processes them one after another in
// chronological order and exports every reconstructed panel. The closing
// state of each batch seeds the opening rows of the next one. Within a
// batch the stations can be split into disjoint partitions that are
// processed concurrently and merged back into one panel.
//
// A batch that fails schema, key or timestamp checks is rejected: it is
// listed in the run summary, nothing is written for it and the closing state
// of the previous batch stays in force. At the end of a run the metadata,
// the closing price history and the rejected batches are written out.
//
// Core Components:
//
// Manager: executes runs, keeps the closing state between runs and the set
// of processed files so a later run can continue with new files only.
//
// JobQueue: executes runs asynchronously in the order they were requested.
//
// RunTracer: spans and business metrics for runs and batches.
//
// StatusBroadcaster: publishes run and batch events to the WebSocket hub.
//
// Example usage:
//
//	cfg, err := operations.ConfigFrom(appConfig, paths)
//	manager := operations.NewManager(cfg, files.NewDiscovery(paths.InputDir), exp, paths.OutputDir,
//		operations.WithHub(hub),
//		operations.WithLogger(logger))
//
//	summary, err := manager.Run(ctx, operations.RunRequest{Trigger: "cli"})
package operations
