// Package bench orchestrates the scenario suite: it drives timed
// operations against both transport disciplines, accumulates measurement
// records and aggregates them for reporting. Every scenario gets fresh
// endpoints, clients and simulators; one scenario's failure never aborts
// the batch.
package bench

import (
	"context"
	"errors"
	"time"

	"github.com/pion/logging"

	"github.com/agentbench/protocol-sim/internal/client"
	"github.com/agentbench/protocol-sim/internal/endpoint"
	"github.com/agentbench/protocol-sim/internal/netsim"
	"github.com/agentbench/protocol-sim/internal/stream"
)

type Options struct {
	Seed       int64
	Iterations int // count-bounded scenarios

	ChatTurns      int
	Concurrency    int
	TaskComplexity int

	// Duration-bounded scenarios.
	TickerBudget   time.Duration
	TickerInterval time.Duration
	DegradeBudget  time.Duration

	// TaskStepInterval shrinks long-running tasks in tests.
	TaskStepInterval time.Duration

	LoggerFactory logging.LoggerFactory
}

func DefaultOptions() Options {
	return Options{
		Seed:           1,
		Iterations:     20,
		ChatTurns:      10,
		Concurrency:    50,
		TaskComplexity: 5,
		TickerBudget:   5 * time.Second,
		TickerInterval: time.Second,
		DegradeBudget:  3 * time.Second,
		LoggerFactory:  logging.NewDefaultLoggerFactory(),
	}
}

type Runner struct {
	opt Options
	log logging.LeveledLogger
	rec Recorder
	sum *SummaryRecorder
}

// NewRunner wires a runner to an output recorder. rec may be nil when
// only the summary matters.
func NewRunner(opt Options, rec Recorder) *Runner {
	if opt.LoggerFactory == nil {
		opt.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	sum := NewSummaryRecorder()
	var out Recorder = sum
	if rec != nil {
		out = MultiRecorder(rec, sum)
	}
	return &Runner{
		opt: opt,
		log: opt.LoggerFactory.NewLogger("bench"),
		rec: out,
		sum: sum,
	}
}

// fixture is one scenario's private world: both backends, both clients,
// and the session space, all seeded from the scenario label.
type fixture struct {
	seed     int64
	rest     *client.Rest
	rpc      *client.RPC
	restEP   endpoint.Endpoint
	rpcEP    endpoint.Endpoint
	sessions *stream.SessionManager
	clLog    logging.LeveledLogger
}

func (r *Runner) newFixture(label string) *fixture {
	seed := netsim.DeriveSeed(r.opt.Seed, label)
	epLog := r.opt.LoggerFactory.NewLogger("endpoint")
	clLog := r.opt.LoggerFactory.NewLogger("client")

	quote := endpoint.NewQuoteSource(seed)
	sessions := stream.NewSessionManager(r.opt.LoggerFactory.NewLogger("stream"))

	restEP := endpoint.NewREST(epLog, endpoint.NewTaskManager(epLog, r.opt.TaskStepInterval), quote)
	rpcEP := endpoint.NewRPC(epLog, sessions, endpoint.NewTaskManager(epLog, r.opt.TaskStepInterval), quote)

	return &fixture{
		seed:     seed,
		rest:     client.NewRest(restEP, seed, clLog),
		rpc:      client.NewRPC(rpcEP, sessions, seed+1, clLog),
		restEP:   restEP,
		rpcEP:    rpcEP,
		sessions: sessions,
		clLog:    clLog,
	}
}

// newRestAgent spawns an extra independent client against the fixture's
// backend; concurrency batches give every agent its own simulator.
func (f *fixture) newRestAgent(n int64) *client.Rest {
	return client.NewRest(f.restEP, f.seed+100+n, f.clLog)
}

func (f *fixture) newRPCAgent(n int64) *client.RPC {
	return client.NewRPC(f.rpcEP, f.sessions, f.seed+200+n, f.clLog)
}

// RunAll executes the scenarios in order and returns the aggregated
// summary. A scenario that errors (setup failure, unreachable backend) is
// logged and skipped; the rest of the batch proceeds.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) ([]SummaryRow, error) {
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return r.sum.Rows(), err
		}

		r.log.Infof("scenario %s: starting", sc.Name)
		f := r.newFixture(sc.Name)

		records, err := sc.Run(ctx, r, f)
		if err != nil {
			r.log.Warnf("scenario %s: skipped: %v", sc.Name, err)
			continue
		}
		for _, rec := range records {
			r.rec.OnRecord(rec)
		}
		r.log.Infof("scenario %s: %d records", sc.Name, len(records))
	}
	return r.sum.Rows(), nil
}

// Summary exposes the aggregates collected so far.
func (r *Runner) Summary() []SummaryRow { return r.sum.Rows() }

// recordCall classifies one operation outcome: drops and endpoint
// failures are counted, not fatal. Unexpected errors propagate.
func recordCall(protocol, scenario string, turn int, res client.CallResult, err error) (Record, error) {
	rec := Record{
		Protocol:  protocol,
		Scenario:  scenario,
		Turn:      turn,
		LatencyMs: float64(res.Latency) / float64(time.Millisecond),
		BytesSent: res.BytesSent,
	}
	switch {
	case err == nil:
	case errors.Is(err, netsim.ErrDropped):
		rec.Dropped = true
	case isTransportError(err):
		rec.Failed = true
	default:
		return rec, err
	}
	return rec, nil
}

func isTransportError(err error) bool {
	var terr *endpoint.TransportError
	return errors.As(err, &terr)
}
