package client

import (
	"context"
	"time"

	"github.com/pion/logging"
	"golang.org/x/time/rate"

	"github.com/agentbench/protocol-sim/internal/endpoint"
	"github.com/agentbench/protocol-sim/internal/netsim"
)

const pollInterval = 100 * time.Millisecond

// Rest is the stateless-repeated discipline: no session, every call carries
// its full context, long-running work is observed by polling.
type Rest struct {
	log logging.LeveledLogger
	ep  endpoint.Endpoint
	sim *netsim.Simulator
}

func NewRest(ep endpoint.Endpoint, seed int64, log logging.LeveledLogger) *Rest {
	return &Rest{log: log, ep: ep, sim: netsim.New(seed)}
}

func (c *Rest) SetNetworkConditions(cond netsim.Conditions) { c.sim.SetConditions(cond) }

// Simulator exposes the owned link model so scenarios can arm alternative
// loss models or schedules.
func (c *Rest) Simulator() *netsim.Simulator { return c.sim }

// call runs one bare request/response exchange through the link gate.
func (c *Rest) call(ctx context.Context, req endpoint.Request) (endpoint.Response, CallResult, error) {
	start := time.Now()
	res := CallResult{BytesSent: endpoint.WireSize(req.Body) + endpoint.EnvelopeOverhead}

	if err := c.sim.Link(ctx); err != nil {
		res.Latency = time.Since(start)
		return endpoint.Response{}, res, err
	}
	resp, err := c.ep.Invoke(ctx, req)
	res.Latency = time.Since(start)
	return resp, res, err
}

func (c *Rest) Ping(ctx context.Context) (CallResult, error) {
	_, res, err := c.call(ctx, endpoint.Request{Route: endpoint.RouteStatus})
	return res, err
}

func (c *Rest) Echo(ctx context.Context, message string) (CallResult, error) {
	_, res, err := c.call(ctx, endpoint.Request{
		Route: endpoint.RouteEcho,
		Body:  endpoint.EchoRequest{Message: message},
	})
	return res, err
}

func (c *Rest) Calculate(ctx context.Context, op string, a, b float64) (CallResult, error) {
	_, res, err := c.call(ctx, endpoint.Request{
		Route: endpoint.RouteCalculate,
		Body:  endpoint.CalculateRequest{Operation: op, A: a, B: b},
	})
	return res, err
}

func (c *Rest) GetContext(ctx context.Context, size int) (CallResult, error) {
	_, res, err := c.call(ctx, endpoint.Request{
		Route: endpoint.RouteContext,
		Body:  endpoint.ContextRequest{Size: size},
	})
	return res, err
}

func (c *Rest) PollStock(ctx context.Context) (CallResult, error) {
	_, res, err := c.call(ctx, endpoint.Request{Route: endpoint.RouteStock})
	return res, err
}

// ChatTurn resends the whole history plus the new message, paying
// bandwidth both ways. BytesSent is the uploaded payload size.
func (c *Rest) ChatTurn(ctx context.Context, history []endpoint.ChatMessage, message string) (ChatResult, error) {
	payload := endpoint.ChatRequest{History: history, Message: message}
	upBytes := endpoint.WireSize(payload)

	start := time.Now()
	res := ChatResult{CallResult: CallResult{BytesSent: upBytes}}

	if err := c.sim.Transfer(ctx, upBytes); err != nil {
		res.Latency = time.Since(start)
		return res, err
	}
	resp, err := c.ep.Invoke(ctx, endpoint.Request{Route: endpoint.RouteChat, Body: payload})
	if err != nil {
		res.Latency = time.Since(start)
		return res, err
	}
	if err := c.sim.Transfer(ctx, endpoint.WireSize(resp.Body)); err != nil {
		res.Latency = time.Since(start)
		return res, err
	}

	res.Latency = time.Since(start)
	res.Response = resp.Body.(endpoint.ChatResponse).Response
	return res, nil
}

// RunTaskPolling starts a task and polls its status at a fixed cadence
// until completion. Every poll passes the link gate; a drop fails the
// whole operation (no retry anywhere in this model).
func (c *Rest) RunTaskPolling(ctx context.Context, complexity int) (TaskResult, error) {
	start := time.Now()
	res := TaskResult{}

	resp, callRes, err := c.call(ctx, endpoint.Request{
		Route: endpoint.RouteTaskStart,
		Body:  endpoint.TaskRequest{Complexity: complexity},
	})
	res.BytesSent = callRes.BytesSent
	if err != nil {
		res.Latency = time.Since(start)
		return res, err
	}
	taskID := resp.Body.(endpoint.TaskCreated).TaskID

	lim := rate.NewLimiter(rate.Every(pollInterval), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			res.Latency = time.Since(start)
			return res, err
		}
		res.Polls++
		resp, _, err := c.call(ctx, endpoint.Request{
			Route: endpoint.RouteTaskStatus,
			Body:  endpoint.TaskStatusRequest{TaskID: taskID},
		})
		res.BytesSent += endpoint.EnvelopeOverhead
		if err != nil {
			res.Latency = time.Since(start)
			return res, err
		}
		if resp.Body.(endpoint.TaskStatus).Status == endpoint.TaskCompleted {
			res.Latency = time.Since(start)
			return res, nil
		}
	}
}

// ChainWorkflow runs the three workflow steps sequentially, each one a
// separate round trip.
func (c *Rest) ChainWorkflow(ctx context.Context, input string) (WorkflowResult, error) {
	start := time.Now()
	res := WorkflowResult{}

	data := input
	for step := 1; step <= 3; step++ {
		resp, callRes, err := c.call(ctx, endpoint.Request{
			Route: endpoint.RouteWorkflow,
			Body:  endpoint.StepRequest{Step: step, InputData: data},
		})
		res.BytesSent += callRes.BytesSent
		if err != nil {
			res.Latency = time.Since(start)
			return res, err
		}
		data = resp.Body.(endpoint.StepResponse).Output
		res.Steps = step
	}

	res.Latency = time.Since(start)
	res.Output = data
	return res, nil
}
