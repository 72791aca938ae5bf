// Package client wraps the mock backends with the two transport
// disciplines under comparison. Every operation is timed around the full
// exchange: the start stamp precedes any simulated delay, the stop stamp
// follows the complete round trip, and a dropped exchange still reports
// the elapsed time it paid.
package client

import "time"

// CallResult is the timing outcome of one logical exchange.
type CallResult struct {
	Latency   time.Duration
	BytesSent int
}

type ChatResult struct {
	CallResult
	Response string
}

// TaskResult is a polled long-running task: Polls counts status requests.
type TaskResult struct {
	CallResult
	Polls int
}

// PushTaskResult is a push-driven long-running task: Events counts
// progress notifications received.
type PushTaskResult struct {
	CallResult
	Events int
}

type WorkflowResult struct {
	CallResult
	Steps  int
	Output string
}
