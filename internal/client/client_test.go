package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pion/logging"

	"github.com/agentbench/protocol-sim/internal/endpoint"
	"github.com/agentbench/protocol-sim/internal/netsim"
	"github.com/agentbench/protocol-sim/internal/stream"
)

func testLogger() logging.LeveledLogger {
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = logging.LogLevelError
	return f.NewLogger("client-test")
}

func newRestClient(t *testing.T) *Rest {
	t.Helper()
	log := testLogger()
	ep := endpoint.NewREST(log, endpoint.NewTaskManager(log, 5*time.Millisecond), endpoint.NewQuoteSource(1))
	return NewRest(ep, 1, log)
}

func newRPCClient(t *testing.T) (*RPC, *stream.SessionManager) {
	t.Helper()
	log := testLogger()
	sessions := stream.NewSessionManager(log)
	ep := endpoint.NewRPC(log, sessions, endpoint.NewTaskManager(log, 5*time.Millisecond), endpoint.NewQuoteSource(1))
	return NewRPC(ep, sessions, 1, log), sessions
}

func TestRestPing(t *testing.T) {
	c := newRestClient(t)
	res, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if res.BytesSent < endpoint.EnvelopeOverhead {
		t.Fatalf("bytes = %d, want at least the envelope", res.BytesSent)
	}
}

func TestStatelessChatBytesGrow(t *testing.T) {
	c := newRestClient(t)
	ctx := context.Background()

	var history []endpoint.ChatMessage
	var sizes []int
	for i := 0; i < 3; i++ {
		msg := strings.Repeat("m", 10*(i+1))
		res, err := c.ChatTurn(ctx, history, msg)
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		sizes = append(sizes, res.BytesSent)

		history = append(history,
			endpoint.ChatMessage{Role: "user", Content: msg},
			endpoint.ChatMessage{Role: "assistant", Content: res.Response},
		)
	}

	for i := 1; i < len(sizes); i++ {
		if sizes[i] <= sizes[i-1] {
			t.Fatalf("bytes not strictly increasing: %v", sizes)
		}
	}
}

func TestStatefulChatBytesRoughlyConstant(t *testing.T) {
	c, _ := newRPCClient(t)
	ctx := context.Background()

	var sizes []int
	for turn := 1; turn <= 3; turn++ {
		msg := strings.Repeat("m", 10*turn)
		res, err := c.ChatTurn(ctx, "session-x", msg, turn)
		if err != nil {
			t.Fatalf("turn %d: %v", turn, err)
		}
		sizes = append(sizes, res.BytesSent)
	}

	// Bounded by message size plus fixed envelope, not by history: the
	// largest turn carries 30 message bytes, so spread stays small.
	if spread := sizes[2] - sizes[0]; spread > 50 {
		t.Fatalf("stateful payloads grew too much: %v", sizes)
	}
}

func TestDroppedExchangeStillReportsElapsed(t *testing.T) {
	c := newRestClient(t)
	c.SetNetworkConditions(netsim.Conditions{LatencyMs: 30, PacketLossRate: 1})

	res, err := c.Echo(context.Background(), "hello")
	if !errors.Is(err, netsim.ErrDropped) {
		t.Fatalf("want ErrDropped, got %v", err)
	}
	if res.Latency < 30*time.Millisecond {
		t.Fatalf("dropped exchange reported %v, want >= 30ms paid latency", res.Latency)
	}
}

func TestRunTaskPollingCountsPolls(t *testing.T) {
	c := newRestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := c.RunTaskPolling(ctx, 1)
	if err != nil {
		t.Fatalf("polling: %v", err)
	}
	if res.Polls < 1 {
		t.Fatalf("polls = %d, want >= 1", res.Polls)
	}
	if res.BytesSent <= endpoint.EnvelopeOverhead {
		t.Fatalf("bytes = %d, poll overhead not accounted", res.BytesSent)
	}
}

func TestRunTaskWithNotifications(t *testing.T) {
	c, _ := newRPCClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := c.RunTaskWithNotifications(ctx, 1)
	if err != nil {
		t.Fatalf("push task: %v", err)
	}
	// 10 running steps plus the terminal notification.
	if res.Events < 2 {
		t.Fatalf("events = %d, want the progress sequence", res.Events)
	}
}

func TestPushBeatsPollingOnRequestCount(t *testing.T) {
	rest := newRestClient(t)
	rpc, _ := newRPCClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poll, err := rest.RunTaskPolling(ctx, 1)
	if err != nil {
		t.Fatalf("polling: %v", err)
	}
	push, err := rpc.RunTaskWithNotifications(ctx, 1)
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	// The push discipline issues one request total; polling issues one per
	// status check on top of the start request.
	if poll.Polls < 1 {
		t.Fatalf("polling made no status requests")
	}
	if push.BytesSent >= poll.BytesSent {
		t.Logf("push bytes %d, poll bytes %d", push.BytesSent, poll.BytesSent)
	}
}

func TestSubscribeResourceCollectsUpdates(t *testing.T) {
	c, sessions := newRPCClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions.StartTicker(ctx, endpoint.ResourceTicker, 20*time.Millisecond, 1)

	updates, _, err := c.SubscribeResource(ctx, endpoint.ResourceTicker, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if len(updates) < 3 {
		t.Fatalf("got %d updates in 200ms at 20ms cadence", len(updates))
	}
	for _, u := range updates {
		if u.Params.URI != endpoint.ResourceTicker {
			t.Fatalf("update for wrong uri: %+v", u)
		}
	}
}

func TestChainWorkflowBothDisciplines(t *testing.T) {
	rest := newRestClient(t)
	rpc, _ := newRPCClient(t)
	ctx := context.Background()

	want := "Summary(Analyzed(Processed(start)))"

	r1, err := rest.ChainWorkflow(ctx, "start")
	if err != nil {
		t.Fatalf("rest workflow: %v", err)
	}
	if r1.Steps != 3 || r1.Output != want {
		t.Fatalf("rest workflow = %+v", r1)
	}

	r2, err := rpc.ChainWorkflow(ctx, "start")
	if err != nil {
		t.Fatalf("rpc workflow: %v", err)
	}
	if r2.Steps != 3 || r2.Output != want {
		t.Fatalf("rpc workflow = %+v", r2)
	}
}

func TestInstabilitySuccessRate(t *testing.T) {
	c := newRestClient(t)
	c.SetNetworkConditions(netsim.Conditions{LatencyMs: 1, PacketLossRate: 0.5})

	const attempts = 40
	drops := 0
	for i := 0; i < attempts; i++ {
		_, err := c.Echo(context.Background(), fmt.Sprintf("msg %d", i))
		switch {
		case errors.Is(err, netsim.ErrDropped):
			drops++
		case err != nil:
			t.Fatalf("attempt %d: unexpected error %v", i, err)
		}
	}

	rate := float64(attempts-drops) / attempts * 100
	if drops == 0 || drops == attempts {
		t.Fatalf("degenerate drop count %d at 50%% loss", drops)
	}
	if rate < 0 || rate > 100 {
		t.Fatalf("success rate %f out of range", rate)
	}
}
