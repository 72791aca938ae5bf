package bench

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentbench/protocol-sim/internal/client"
	"github.com/agentbench/protocol-sim/internal/endpoint"
	"github.com/agentbench/protocol-sim/internal/netsim"
)

// Scenario is one named benchmark over both transport disciplines.
type Scenario struct {
	Name string
	Run  func(ctx context.Context, r *Runner, f *fixture) ([]Record, error)
}

func DefaultScenarios() []Scenario {
	return []Scenario{
		pingScenario(),
		toolCallScenario(),
		contextRetrievalScenario(),
		chatScenario(),
		concurrencyScenario(),
		longTaskScenario(),
		stockTickerScenario(),
		instabilityScenario(),
		burstLossScenario(),
		toolChainingScenario(),
		realWorldChatScenario(),
		degradingLinkScenario(),
	}
}

const stockPollInterval = 100 * time.Millisecond

// pingScenario measures the bare round trip: REST status vs the
// lightweight tools/list of the RPC discipline.
func pingScenario() Scenario {
	return Scenario{Name: "ping", Run: func(ctx context.Context, r *Runner, f *fixture) ([]Record, error) {
		var out []Record
		for i := 1; i <= r.opt.Iterations; i++ {
			res, err := f.rest.Ping(ctx)
			rec, err := recordCall(ProtocolREST, "ping", i, res, err)
			if err != nil {
				return out, err
			}
			out = append(out, rec)

			res, err = f.rpc.ListTools(ctx)
			rec, err = recordCall(ProtocolRPC, "ping", i, res, err)
			if err != nil {
				return out, err
			}
			out = append(out, rec)
		}
		return out, nil
	}}
}

func toolCallScenario() Scenario {
	return Scenario{Name: "tool_call", Run: func(ctx context.Context, r *Runner, f *fixture) ([]Record, error) {
		var out []Record
		for i := 1; i <= r.opt.Iterations; i++ {
			res, err := f.rest.Calculate(ctx, "multiply", 123.45, 67.89)
			rec, err := recordCall(ProtocolREST, "tool_call", i, res, err)
			if err != nil {
				return out, err
			}
			out = append(out, rec)

			res, err = f.rpc.CallTool(ctx, endpoint.ToolCalculate,
				endpoint.CalculateRequest{Operation: "multiply", A: 123.45, B: 67.89})
			rec, err = recordCall(ProtocolRPC, "tool_call", i, res, err)
			if err != nil {
				return out, err
			}
			out = append(out, rec)
		}
		return out, nil
	}}
}

func contextRetrievalScenario() Scenario {
	return Scenario{Name: "context_retrieval", Run: func(ctx context.Context, r *Runner, f *fixture) ([]Record, error) {
		var out []Record
		for i := 1; i <= r.opt.Iterations; i++ {
			res, err := f.rest.GetContext(ctx, 1000)
			rec, err := recordCall(ProtocolREST, "context_retrieval", i, res, err)
			if err != nil {
				return out, err
			}
			out = append(out, rec)

			res, err = f.rpc.ReadResource(ctx, endpoint.ResourceContext)
			rec, err = recordCall(ProtocolRPC, "context_retrieval", i, res, err)
			if err != nil {
				return out, err
			}
			out = append(out, rec)
		}
		return out, nil
	}}
}

// chatScenario contrasts the payload-growth curves: the stateless side
// resends the accumulated history, the stateful side sends only deltas.
func chatScenario() Scenario {
	return Scenario{Name: "chat", Run: func(ctx context.Context, r *Runner, f *fixture) ([]Record, error) {
		return runChat(ctx, r, f, "chat", func(turn int) string {
			return fmt.Sprintf("Message %d", turn)
		})
	}}
}

// realWorldChatScenario replays the chat exchange over a constrained
// link (50ms latency, 5 Mbps) with messages that grow each turn.
func realWorldChatScenario() Scenario {
	return Scenario{Name: "real_world_chat", Run: func(ctx context.Context, r *Runner, f *fixture) ([]Record, error) {
		cond := netsim.Conditions{LatencyMs: 50, BandwidthMbps: 5}
		f.rest.SetNetworkConditions(cond)
		f.rpc.SetNetworkConditions(cond)

		return runChat(ctx, r, f, "real_world_chat", func(turn int) string {
			return strings.Repeat(fmt.Sprintf("Message %d ", turn), turn*5)
		})
	}}
}

func runChat(ctx context.Context, r *Runner, f *fixture, name string, message func(turn int) string) ([]Record, error) {
	var out []Record
	var history []endpoint.ChatMessage
	sessionID := "session-" + name

	for turn := 1; turn <= r.opt.ChatTurns; turn++ {
		msg := message(turn)

		restRes, err := f.rest.ChatTurn(ctx, history, msg)
		rec, err := recordCall(ProtocolREST, name, turn, restRes.CallResult, err)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
		if !rec.Dropped && !rec.Failed {
			history = append(history,
				endpoint.ChatMessage{Role: "user", Content: msg},
				endpoint.ChatMessage{Role: "assistant", Content: restRes.Response},
			)
		}

		rpcRes, err := f.rpc.ChatTurn(ctx, sessionID, msg, turn)
		rec, err = recordCall(ProtocolRPC, name, turn, rpcRes.CallResult, err)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// concurrencyScenario multiplexes N independent agents, each with its own
// client and simulator, and reports aggregate throughput over the batch
// wall-clock span.
func concurrencyScenario() Scenario {
	return Scenario{Name: "concurrency", Run: func(ctx context.Context, r *Runner, f *fixture) ([]Record, error) {
		n := r.opt.Concurrency
		var out []Record

		runBatch := func(protocol string, op func(i int) (client.CallResult, error)) error {
			results := make([]client.CallResult, n)
			errs := make([]error, n)

			start := time.Now()
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = op(i)
				}(i)
			}
			wg.Wait()
			wall := time.Since(start).Seconds()

			rps := 0.0
			if wall > 0 {
				rps = float64(n) / wall
			}
			for i := 0; i < n; i++ {
				rec, err := recordCall(protocol, "concurrency", i+1, results[i], errs[i])
				if err != nil {
					return err
				}
				rec.RPS = rps
				out = append(out, rec)
			}
			return nil
		}

		restAgents := make([]*client.Rest, n)
		rpcAgents := make([]*client.RPC, n)
		for i := 0; i < n; i++ {
			restAgents[i] = f.newRestAgent(int64(i))
			rpcAgents[i] = f.newRPCAgent(int64(i))
		}

		if err := runBatch(ProtocolREST, func(i int) (client.CallResult, error) {
			return restAgents[i].Ping(ctx)
		}); err != nil {
			return out, err
		}
		if err := runBatch(ProtocolRPC, func(i int) (client.CallResult, error) {
			return rpcAgents[i].CallTool(ctx, endpoint.ToolCalculate,
				endpoint.CalculateRequest{Operation: "add", A: 1, B: 1})
		}); err != nil {
			return out, err
		}
		return out, nil
	}}
}

// longTaskScenario contrasts poll-until-done with push notifications for
// the same background task.
func longTaskScenario() Scenario {
	return Scenario{Name: "long_task", Run: func(ctx context.Context, r *Runner, f *fixture) ([]Record, error) {
		var out []Record

		pollRes, err := f.rest.RunTaskPolling(ctx, r.opt.TaskComplexity)
		rec, err := recordCall(ProtocolREST, "long_task", 1, pollRes.CallResult, err)
		if err != nil {
			return out, err
		}
		rec.Polls = pollRes.Polls
		out = append(out, rec)

		pushRes, err := f.rpc.RunTaskWithNotifications(ctx, r.opt.TaskComplexity)
		rec, err = recordCall(ProtocolRPC, "long_task", 1, pushRes.CallResult, err)
		if err != nil {
			return out, err
		}
		rec.Events = pushRes.Events
		out = append(out, rec)

		return out, nil
	}}
}

// stockTickerScenario contrasts polling a quote endpoint at a fixed
// cadence with subscribing to pushed updates for the same budget.
func stockTickerScenario() Scenario {
	return Scenario{Name: "stock_ticker", Run: func(ctx context.Context, r *Runner, f *fixture) ([]Record, error) {
		var out []Record
		budget := r.opt.TickerBudget

		// Stateless side: poll until the budget runs out.
		pollCtx, cancelPoll := context.WithTimeout(ctx, budget)
		lim := rate.NewLimiter(rate.Every(stockPollInterval), 1)
		polls, bytes := 0, 0
		for {
			if err := lim.Wait(pollCtx); err != nil {
				break
			}
			res, err := f.rest.PollStock(pollCtx)
			if err != nil && !isTransportError(err) && ctx.Err() != nil {
				cancelPoll()
				return out, ctx.Err()
			}
			polls++
			bytes += res.BytesSent
		}
		cancelPoll()
		out = append(out, Record{
			Protocol:  ProtocolREST,
			Scenario:  "stock_ticker",
			Polls:     polls,
			BytesSent: bytes,
		})

		// Stateful side: one subscription, pushed updates.
		tickerCtx, cancelTicker := context.WithCancel(ctx)
		defer cancelTicker()
		f.sessions.StartTicker(tickerCtx, endpoint.ResourceTicker, r.opt.TickerInterval, f.seed)

		updates, subRes, err := f.rpc.SubscribeResource(ctx, endpoint.ResourceTicker, budget)
		rec, err := recordCall(ProtocolRPC, "stock_ticker", 1, subRes, err)
		if err != nil {
			return out, err
		}
		rec.Events = len(updates)
		rec.LatencyMs = 0
		out = append(out, rec)

		return out, nil
	}}
}

// instabilityScenario measures the success rate of both disciplines on a
// lossy, slow link. Drops are counted, never retried and never fatal.
func instabilityScenario() Scenario {
	return Scenario{Name: "network_instability", Run: func(ctx context.Context, r *Runner, f *fixture) ([]Record, error) {
		cond := netsim.Conditions{LatencyMs: 100, PacketLossRate: 0.1}
		f.rest.SetNetworkConditions(cond)
		f.rpc.SetNetworkConditions(cond)

		return runLossProbe(ctx, f, "network_instability", 20)
	}}
}

// burstLossScenario swaps the Bernoulli draw for a Gilbert-Elliott burst
// model: long good stretches punctuated by bursts of drops.
func burstLossScenario() Scenario {
	return Scenario{Name: "burst_loss", Run: func(ctx context.Context, r *Runner, f *fixture) ([]Record, error) {
		for _, sim := range []*netsim.Simulator{f.rest.Simulator(), f.rpc.Simulator()} {
			sim.SetConditions(netsim.Conditions{LatencyMs: 20})
			sim.SetLossModel(netsim.NewGilbertElliottLoss(f.seed, 0.05, 0.5, 0.01, 0.6))
		}
		return runLossProbe(ctx, f, "burst_loss", 30)
	}}
}

func runLossProbe(ctx context.Context, f *fixture, name string, attempts int) ([]Record, error) {
	var out []Record

	probe := func(protocol string, op func(i int) (client.CallResult, error)) error {
		successes, drops, fails := 0, 0, 0
		var sumLat time.Duration
		for i := 1; i <= attempts; i++ {
			res, err := op(i)
			rec, err := recordCall(protocol, name, i, res, err)
			if err != nil {
				return err
			}
			switch {
			case rec.Dropped:
				drops++
			case rec.Failed:
				fails++
			default:
				successes++
				sumLat += res.Latency
			}
		}

		rec := Record{
			Protocol:    protocol,
			Scenario:    name,
			SuccessRate: float64(attempts-drops-fails) / float64(attempts) * 100,
		}
		if successes > 0 {
			rec.LatencyMs = float64(sumLat) / float64(successes) / float64(time.Millisecond)
		}
		out = append(out, rec)
		return nil
	}

	if err := probe(ProtocolREST, func(i int) (client.CallResult, error) {
		return f.rest.Echo(ctx, "test")
	}); err != nil {
		return out, err
	}
	if err := probe(ProtocolRPC, func(i int) (client.CallResult, error) {
		res, err := f.rpc.ChatTurn(ctx, "session-probe", "test", 1)
		return res.CallResult, err
	}); err != nil {
		return out, err
	}
	return out, nil
}

func toolChainingScenario() Scenario {
	return Scenario{Name: "tool_chaining", Run: func(ctx context.Context, r *Runner, f *fixture) ([]Record, error) {
		var out []Record

		restRes, err := f.rest.ChainWorkflow(ctx, "start")
		rec, err := recordCall(ProtocolREST, "tool_chaining", 1, restRes.CallResult, err)
		if err != nil {
			return out, err
		}
		rec.Steps = restRes.Steps
		out = append(out, rec)

		rpcRes, err := f.rpc.ChainWorkflow(ctx, "start")
		rec, err = recordCall(ProtocolRPC, "tool_chaining", 1, rpcRes.CallResult, err)
		if err != nil {
			return out, err
		}
		rec.Steps = rpcRes.Steps
		out = append(out, rec)

		return out, nil
	}}
}

// degradingLinkScenario walks a condition schedule while probing both
// disciplines; conditions change only between iterations, never under an
// in-flight exchange.
func degradingLinkScenario() Scenario {
	return Scenario{Name: "degrading_link", Run: func(ctx context.Context, r *Runner, f *fixture) ([]Record, error) {
		budget := r.opt.DegradeBudget
		sched := netsim.NewConditionSchedule(
			netsim.Conditions{LatencyMs: 10},
			netsim.ConditionPoint{At: budget / 3, Cond: netsim.Conditions{LatencyMs: 50, PacketLossRate: 0.05}},
			netsim.ConditionPoint{At: 2 * budget / 3, Cond: netsim.Conditions{LatencyMs: 150, PacketLossRate: 0.2}},
		)

		var out []Record
		start := time.Now()
		for i := 1; i <= r.opt.Iterations; i++ {
			cond := sched.At(time.Since(start))
			f.rest.SetNetworkConditions(cond)
			f.rpc.SetNetworkConditions(cond)

			res, err := f.rest.Echo(ctx, fmt.Sprintf("probe %d", i))
			rec, err := recordCall(ProtocolREST, "degrading_link", i, res, err)
			if err != nil {
				return out, err
			}
			out = append(out, rec)

			res, err = f.rpc.ListTools(ctx)
			rec, err = recordCall(ProtocolRPC, "degrading_link", i, res, err)
			if err != nil {
				return out, err
			}
			out = append(out, rec)
		}
		return out, nil
	}}
}
