package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pion/logging"

	"github.com/agentbench/protocol-sim/internal/stream"
)

func testLogger() logging.LeveledLogger {
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = logging.LogLevelError
	return f.NewLogger("endpoint-test")
}

func newTestREST(t *testing.T) *REST {
	t.Helper()
	log := testLogger()
	return NewREST(log, NewTaskManager(log, 5*time.Millisecond), NewQuoteSource(1))
}

func newTestRPC(t *testing.T) (*RPC, *stream.SessionManager) {
	t.Helper()
	log := testLogger()
	sessions := stream.NewSessionManager(log)
	return NewRPC(log, sessions, NewTaskManager(log, 5*time.Millisecond), NewQuoteSource(1)), sessions
}

func TestRESTCalculate(t *testing.T) {
	s := newTestREST(t)
	ctx := context.Background()

	cases := []struct {
		op   string
		a, b float64
		want float64
	}{
		{"add", 2, 3, 5},
		{"subtract", 10, 4, 6},
		{"multiply", 123.45, 2, 246.9},
		{"divide", 9, 3, 3},
	}
	for _, tc := range cases {
		resp, err := s.Invoke(ctx, Request{Route: RouteCalculate, Body: CalculateRequest{Operation: tc.op, A: tc.a, B: tc.b}})
		if err != nil {
			t.Fatalf("%s: %v", tc.op, err)
		}
		got := resp.Body.(CalculateResponse)
		if got.Result != tc.want {
			t.Errorf("%s(%v,%v) = %v, want %v", tc.op, tc.a, tc.b, got.Result, tc.want)
		}
	}
}

func TestRESTDivisionByZero(t *testing.T) {
	s := newTestREST(t)
	_, err := s.Invoke(context.Background(), Request{Route: RouteCalculate, Body: CalculateRequest{Operation: "divide", A: 1, B: 0}})

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("want TransportError, got %v", err)
	}
}

func TestRESTUnknownRoute(t *testing.T) {
	s := newTestREST(t)
	_, err := s.Invoke(context.Background(), Request{Route: "/nope"})

	var terr *TransportError
	if !errors.As(err, &terr) || terr.Code != 404 {
		t.Fatalf("want 404 TransportError, got %v", err)
	}
}

func TestRESTContextSize(t *testing.T) {
	s := newTestREST(t)
	resp, err := s.Invoke(context.Background(), Request{Route: RouteContext, Body: ContextRequest{Size: 1000}})
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	got := resp.Body.(ContextResponse)
	if len(got.Data) != 1000 || got.Size != 1000 {
		t.Fatalf("context size %d/%d, want 1000", len(got.Data), got.Size)
	}
}

func TestRESTChatUsageCountsHistory(t *testing.T) {
	s := newTestREST(t)
	req := ChatRequest{
		History: []ChatMessage{
			{Role: "user", Content: strings.Repeat("a", 40)},
			{Role: "assistant", Content: strings.Repeat("b", 60)},
		},
		Message: strings.Repeat("c", 10),
	}
	resp, err := s.Invoke(context.Background(), Request{Route: RouteChat, Body: req})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	got := resp.Body.(ChatResponse)
	if got.Usage != 110 {
		t.Fatalf("usage = %d, want 110", got.Usage)
	}
}

func TestRESTTaskLifecycle(t *testing.T) {
	s := newTestREST(t)
	ctx := context.Background()

	resp, err := s.Invoke(ctx, Request{Route: RouteTaskStart, Body: TaskRequest{Complexity: 1}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := resp.Body.(TaskCreated).TaskID

	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := s.Invoke(ctx, Request{Route: RouteTaskStatus, Body: TaskStatusRequest{TaskID: id}})
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		st := resp.Body.(TaskStatus)
		if st.Status == TaskCompleted {
			if st.Progress != 100 || st.Result == "" {
				t.Fatalf("completed task has %+v", st)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("task never completed, last status %+v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRESTWorkflowChain(t *testing.T) {
	s := newTestREST(t)
	ctx := context.Background()

	input := "start"
	for step := 1; step <= 3; step++ {
		resp, err := s.Invoke(ctx, Request{Route: RouteWorkflow, Body: StepRequest{Step: step, InputData: input}})
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		input = resp.Body.(StepResponse).Output
	}
	if input != "Summary(Analyzed(Processed(start)))" {
		t.Fatalf("chained output = %q", input)
	}
}

func TestRPCUnknownMethod(t *testing.T) {
	s, _ := newTestRPC(t)
	_, err := s.Invoke(context.Background(), Request{Route: "prompts/unknown"})

	var terr *TransportError
	if !errors.As(err, &terr) || terr.Code != -32601 {
		t.Fatalf("want -32601, got %v", err)
	}
}

func TestRPCChatRequiresSession(t *testing.T) {
	s, _ := newTestRPC(t)
	_, err := s.Invoke(context.Background(), Request{Route: MethodChat, Body: ChatParams{Message: "hi"}})

	var terr *TransportError
	if !errors.As(err, &terr) || terr.Code != -32602 {
		t.Fatalf("want -32602, got %v", err)
	}
}

func TestRPCCalculateTool(t *testing.T) {
	s, _ := newTestRPC(t)
	resp, err := s.Invoke(context.Background(), Request{
		Route: MethodCallTool,
		Body: ToolCallParams{
			Name:      ToolCalculate,
			Arguments: CalculateRequest{Operation: "multiply", A: 6, B: 7},
		},
	})
	if err != nil {
		t.Fatalf("tools/call: %v", err)
	}

	var out CalculateResponse
	text := resp.Body.(ToolCallResult).Content[0].Text
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("tool content not json: %v", err)
	}
	if out.Result != 42 {
		t.Fatalf("result = %v, want 42", out.Result)
	}
}

func TestRPCGenerateTaskPushesProgress(t *testing.T) {
	s, sessions := newTestRPC(t)
	ctx := context.Background()

	sess := sessions.Open()
	ctxID, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	id, err := sess.AwaitSessionID(ctxID)
	if err != nil {
		t.Fatalf("AwaitSessionID: %v", err)
	}

	_, err = s.Invoke(ctx, Request{
		Route: MethodCallTool,
		Body: ToolCallParams{
			Name:      ToolGenerateTask,
			Arguments: GenerateTaskArgs{Complexity: 1, SessionID: id},
		},
	})
	if err != nil {
		t.Fatalf("generate_task: %v", err)
	}

	ctxDone, cancelDone := context.WithTimeout(ctx, 3*time.Second)
	defer cancelDone()
	events := sess.CollectUntilDone(ctxDone)

	if len(events) < 2 {
		t.Fatalf("got %d push events, want progress plus terminal", len(events))
	}
	last := events[len(events)-1]
	if !last.Terminal() || last.Params.Progress != 100 {
		t.Fatalf("terminal event = %+v", last)
	}
}

func TestRPCGenerateTaskRejectsUnknownSession(t *testing.T) {
	s, _ := newTestRPC(t)
	_, err := s.Invoke(context.Background(), Request{
		Route: MethodCallTool,
		Body: ToolCallParams{
			Name:      ToolGenerateTask,
			Arguments: GenerateTaskArgs{Complexity: 1, SessionID: "no-such-session"},
		},
	})
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Code != -32602 {
		t.Fatalf("want -32602, got %v", err)
	}
}

func TestRPCReadResources(t *testing.T) {
	s, _ := newTestRPC(t)
	ctx := context.Background()

	for _, uri := range []string{ResourceLogs, ResourceTicker, ResourceContext} {
		resp, err := s.Invoke(ctx, Request{Route: MethodReadResource, Body: ReadResourceParams{URI: uri}})
		if err != nil {
			t.Fatalf("read %s: %v", uri, err)
		}
		contents := resp.Body.(ResourceReadResult).Contents
		if len(contents) != 1 || contents[0].Text == "" {
			t.Fatalf("read %s: empty contents", uri)
		}
	}

	if _, err := s.Invoke(ctx, Request{Route: MethodReadResource, Body: ReadResourceParams{URI: "bogus://x"}}); err == nil {
		t.Fatal("unknown resource did not error")
	}
}

func TestWireSize(t *testing.T) {
	if WireSize(nil) != 0 {
		t.Fatal("nil payload must cost nothing")
	}
	small := WireSize(EchoRequest{Message: "a"})
	large := WireSize(EchoRequest{Message: strings.Repeat("a", 100)})
	if small <= 0 || large <= small {
		t.Fatalf("wire sizes small=%d large=%d", small, large)
	}
}
