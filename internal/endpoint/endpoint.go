// Package endpoint provides the two mock remote backends the benchmark
// compares: a stateless request/response server and a stateful JSON-RPC
// server with push notifications. Both are in-process; the only real cost
// they have is their synthetic compute delay. Link effects live in netsim,
// not here.
package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EnvelopeOverhead approximates fixed per-request framing (headers etc.)
// in the byte accounting.
const EnvelopeOverhead = 100

// Request is the descriptor for one call: a route (path or RPC method)
// plus a route-specific payload struct.
type Request struct {
	Route string
	Body  any
}

type Response struct {
	Body any
}

// Endpoint is the remote-endpoint capability the timing layer wraps.
type Endpoint interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// WireSize is the JSON-encoded size of a payload, used for bytes-sent
// accounting. nil costs nothing.
func WireSize(v any) int {
	if v == nil {
		return 0
	}
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}

// TransportError is an endpoint-level failure unrelated to the simulated
// link: unknown route, bad arguments, missing session. The scenario loop
// records it and moves on.
type TransportError struct {
	Code   int
	Reason string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s (code %d)", e.Reason, e.Code)
}

func errNotFound(what string) error {
	return &TransportError{Code: 404, Reason: what + " not found"}
}

func errBadRequest(reason string) error {
	return &TransportError{Code: 400, Reason: reason}
}

// compute pauses for a synthetic processing cost, honoring cancellation.
func compute(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
