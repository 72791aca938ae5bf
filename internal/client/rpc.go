package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pion/logging"

	"github.com/agentbench/protocol-sim/internal/endpoint"
	"github.com/agentbench/protocol-sim/internal/netsim"
	"github.com/agentbench/protocol-sim/internal/stream"
)

// rpcEnvelope mirrors the JSON-RPC framing for bytes-sent accounting.
type rpcEnvelope struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int    `json:"id"`
}

// RPC is the stateful-incremental discipline: a persistent session, delta
// payloads, and server push over an event stream instead of polling.
type RPC struct {
	log      logging.LeveledLogger
	ep       endpoint.Endpoint
	sessions *stream.SessionManager
	sim      *netsim.Simulator
	nextID   int
}

func NewRPC(ep endpoint.Endpoint, sessions *stream.SessionManager, seed int64, log logging.LeveledLogger) *RPC {
	return &RPC{log: log, ep: ep, sessions: sessions, sim: netsim.New(seed)}
}

func (c *RPC) SetNetworkConditions(cond netsim.Conditions) { c.sim.SetConditions(cond) }

func (c *RPC) Simulator() *netsim.Simulator { return c.sim }

// send issues one JSON-RPC exchange through the link gate and returns the
// framed request size alongside the response.
func (c *RPC) send(ctx context.Context, method string, params any) (endpoint.Response, int, error) {
	c.nextID++
	size := endpoint.WireSize(rpcEnvelope{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID})

	if err := c.sim.Link(ctx); err != nil {
		return endpoint.Response{}, size, err
	}
	resp, err := c.ep.Invoke(ctx, endpoint.Request{Route: method, Body: params})
	return resp, size, err
}

func (c *RPC) Initialize(ctx context.Context) (CallResult, error) {
	start := time.Now()
	_, size, err := c.send(ctx, endpoint.MethodInitialize, nil)
	return CallResult{Latency: time.Since(start), BytesSent: size}, err
}

// ListTools doubles as the lightweight ping of this discipline.
func (c *RPC) ListTools(ctx context.Context) (CallResult, error) {
	start := time.Now()
	_, size, err := c.send(ctx, endpoint.MethodListTools, nil)
	return CallResult{Latency: time.Since(start), BytesSent: size}, err
}

func (c *RPC) CallTool(ctx context.Context, name string, args any) (CallResult, error) {
	start := time.Now()
	_, size, err := c.send(ctx, endpoint.MethodCallTool, endpoint.ToolCallParams{Name: name, Arguments: args})
	return CallResult{Latency: time.Since(start), BytesSent: size}, err
}

func (c *RPC) ReadResource(ctx context.Context, uri string) (CallResult, error) {
	start := time.Now()
	_, size, err := c.send(ctx, endpoint.MethodReadResource, endpoint.ReadResourceParams{URI: uri})
	return CallResult{Latency: time.Since(start), BytesSent: size}, err
}

// ChatTurn sends only the incremental message; the server is assumed to
// retain the conversation. BytesSent stays bounded by the message size
// plus envelope, regardless of how long the conversation has run.
func (c *RPC) ChatTurn(ctx context.Context, sessionID, message string, turn int) (ChatResult, error) {
	params := endpoint.ChatParams{Message: message, SessionID: sessionID, TurnCount: turn}
	upBytes := endpoint.WireSize(rpcEnvelope{JSONRPC: "2.0", Method: endpoint.MethodChat, Params: params, ID: c.nextID + 1}) + endpoint.EnvelopeOverhead

	start := time.Now()
	res := ChatResult{CallResult: CallResult{BytesSent: upBytes}}

	if err := c.sim.Transfer(ctx, upBytes); err != nil {
		res.Latency = time.Since(start)
		return res, err
	}
	resp, _, err := c.send(ctx, endpoint.MethodChat, params)
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

// RunTaskWithNotifications opens a push session, starts the task against
// it, and consumes progress until the terminal event. One request, zero
// polls. Failure to establish the session is a setup failure and surfaces
// as an error.
func (c *RPC) RunTaskWithNotifications(ctx context.Context, complexity int) (PushTaskResult, error) {
	start := time.Now()
	res := PushTaskResult{}

	sess := c.sessions.Open()
	defer c.sessions.Disconnect(sess.ID())

	sessionID, err := sess.AwaitSessionID(ctx)
	if err != nil {
		res.Latency = time.Since(start)
		return res, err
	}

	_, size, err := c.send(ctx, endpoint.MethodCallTool, endpoint.ToolCallParams{
		Name:      endpoint.ToolGenerateTask,
		Arguments: endpoint.GenerateTaskArgs{Complexity: complexity, SessionID: sessionID},
	})
	res.BytesSent = size
	if err != nil {
		res.Latency = time.Since(start)
		return res, err
	}

	for _, ev := range sess.CollectUntilDone(ctx) {
		if ev.Method == stream.MethodProgress {
			res.Events++
		}
	}
	res.Latency = time.Since(start)
	return res, nil
}

// SubscribeResource subscribes and then collects pushed updates for the
// given budget. Partial or empty results are expected outcomes.
func (c *RPC) SubscribeResource(ctx context.Context, uri string, budget time.Duration) ([]stream.Event, CallResult, error) {
	start := time.Now()

	sess := c.sessions.Open()
	defer c.sessions.Disconnect(sess.ID())

	_, size, err := c.send(ctx, endpoint.MethodSubscribe, endpoint.ReadResourceParams{URI: uri})
	res := CallResult{BytesSent: size}
	if err != nil {
		res.Latency = time.Since(start)
		return nil, res, err
	}

	var updates []stream.Event
	for _, ev := range sess.CollectFor(budget) {
		if ev.Method == stream.MethodResourceUpdated && ev.Params.URI == uri {
			updates = append(updates, ev)
		}
	}
	res.Latency = time.Since(start)
	return updates, res, nil
}

// ChainWorkflow runs the three workflow steps as sequential tool calls,
// threading each step's output into the next.
func (c *RPC) ChainWorkflow(ctx context.Context, input string) (WorkflowResult, error) {
	start := time.Now()
	res := WorkflowResult{}

	data := input
	for step := 1; step <= 3; step++ {
		resp, size, err := c.send(ctx, endpoint.MethodCallTool, endpoint.ToolCallParams{
			Name:      endpoint.ToolWorkflowStep,
			Arguments: endpoint.StepRequest{Step: step, InputData: data},
		})
		res.BytesSent += size
		if err != nil {
			res.Latency = time.Since(start)
			return res, err
		}

		var out endpoint.StepResponse
		text := resp.Body.(endpoint.ToolCallResult).Content[0].Text
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			res.Latency = time.Since(start)
			return res, &endpoint.TransportError{Code: -32700, Reason: "malformed tool result"}
		}
		data = out.Output
		res.Steps = step
	}

	res.Latency = time.Since(start)
	res.Output = data
	return res, nil
}
