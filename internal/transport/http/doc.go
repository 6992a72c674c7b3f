// Package http implements the status API of the panel processor.
//
// Handlers stay thin: they parse and validate the request, call the run
// manager or job queue through small interfaces and render the result.
//
// # Routes
//
//	GET  /api/health             process, websocket and run health
//	GET  /api/v1/runs/latest     summary of the last finished run
//	GET  /api/v1/runs/current    progress of the run in flight
//	POST /api/v1/runs            queue a run, answers 202 with a poll URL
//	GET  /api/v1/jobs            queued and finished runs, newest first
//	GET  /api/v1/jobs/{id}       one job
//	GET  /api/v1/closing         closing state carried into the next batch
//	GET  /metrics                Prometheus exposition
//	GET  /ws                     websocket feed of run and batch events
//
// # Error Handling
//
// Every error is answered with RFC 7807 problem details:
//
//	{
//	    "type": "/errors/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "job 42 not found",
//	    "instance": "/api/v1/jobs/42"
//	}
package http
