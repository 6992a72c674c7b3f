// Package app wires the processor together: configuration, logging and
// telemetry, the run manager with its job queue, the optional scheduler and
// the status API.
//
// # Lifecycle
//
//	1. NewApplication builds every component from a validated config
//	2. RunOnce processes the input directory a single time
//	3. Start serves the status API and queues the first run
//	4. Stop drains the server, the queue and the telemetry providers
//
// The package never calls os.Exit; errors are returned to main.
package app
