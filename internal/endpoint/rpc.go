package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pion/logging"

	"github.com/agentbench/protocol-sim/internal/stream"
)

// JSON-RPC methods served by the stateful backend.
const (
	MethodInitialize    = "initialize"
	MethodListTools     = "tools/list"
	MethodCallTool      = "tools/call"
	MethodChat          = "prompts/chat"
	MethodListResources = "resources/list"
	MethodReadResource  = "resources/read"
	MethodSubscribe     = "resources/subscribe"
)

// Tool names.
const (
	ToolCalculate    = "calculate"
	ToolGenerateTask = "generate_task"
	ToolWorkflowStep = "workflow_step"
)

// Resource URIs.
const (
	ResourceLogs    = "file:///logs/system.log"
	ResourceTicker  = "stock://ticker"
	ResourceContext = "context://large"
)

const rpcContextSize = 1000

type ToolCallParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

type GenerateTaskArgs struct {
	Complexity int    `json:"complexity"`
	SessionID  string `json:"sessionId"`
}

type ChatParams struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	TurnCount int    `json:"turnCount"`
}

type ReadResourceParams struct {
	URI string `json:"uri"`
}

type InitializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerName      string `json:"serverName"`
	ServerVersion   string `json:"serverVersion"`
}

type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ToolCallResult struct {
	Content []ContentItem `json:"content"`
}

type ResourceInfo struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

type ResourcesResult struct {
	Resources []ResourceInfo `json:"resources"`
}

type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type ResourceReadResult struct {
	Contents []ResourceContents `json:"contents"`
}

type SubscribeResult struct {
	Status string `json:"status"`
}

// RPC is the stateful backend: sessions persist, the server retains
// conversational context, and progress is pushed over the owning session
// instead of being polled.
type RPC struct {
	log      logging.LeveledLogger
	sessions *stream.SessionManager
	tasks    *TaskManager
	quote    *QuoteSource
}

func NewRPC(log logging.LeveledLogger, sessions *stream.SessionManager, tasks *TaskManager, quote *QuoteSource) *RPC {
	return &RPC{log: log, sessions: sessions, tasks: tasks, quote: quote}
}

func (s *RPC) Invoke(ctx context.Context, req Request) (Response, error) {
	switch req.Route {
	case MethodInitialize:
		return Response{Body: InitializeResult{
			ProtocolVersion: "0.1.0",
			ServerName:      "protocol-sim-rpc",
			ServerVersion:   "1.0.0",
		}}, nil

	case MethodListTools:
		return Response{Body: ToolsResult{Tools: []ToolInfo{
			{Name: ToolCalculate, Description: "Perform basic arithmetic operations"},
			{Name: ToolGenerateTask, Description: "Start a long-running task with push progress"},
			{Name: ToolWorkflowStep, Description: "Execute one workflow step"},
		}}}, nil

	case MethodCallTool:
		params, ok := req.Body.(ToolCallParams)
		if !ok {
			return Response{}, rpcInvalidParams("tools/call params")
		}
		return s.callTool(ctx, params)

	case MethodChat:
		params, ok := req.Body.(ChatParams)
		if !ok {
			return Response{}, rpcInvalidParams("chat params")
		}
		if params.SessionID == "" {
			return Response{}, rpcInvalidParams("missing sessionId")
		}
		// The server is assumed to retain the conversation; processing
		// cost grows with the retained context, not the payload.
		contextLen := params.TurnCount*100 + len(params.Message)
		if err := compute(ctx, time.Duration(contextLen)*chatDelayPerQty); err != nil {
			return Response{}, err
		}
		return Response{Body: ChatResponse{
			Response: fmt.Sprintf("Echo: %s (turn %d)", params.Message, params.TurnCount),
			Usage:    contextLen,
		}}, nil

	case MethodListResources:
		return Response{Body: ResourcesResult{Resources: []ResourceInfo{
			{URI: ResourceLogs, Name: "System Logs", MimeType: "text/plain"},
			{URI: ResourceTicker, Name: "Stock Ticker", MimeType: "application/json"},
			{URI: ResourceContext, Name: "Large Context", MimeType: "text/plain"},
		}}}, nil

	case MethodReadResource:
		params, ok := req.Body.(ReadResourceParams)
		if !ok {
			return Response{}, rpcInvalidParams("resources/read params")
		}
		return s.readResource(params.URI)

	case MethodSubscribe:
		params, ok := req.Body.(ReadResourceParams)
		if !ok || params.URI == "" {
			return Response{}, rpcInvalidParams("resources/subscribe params")
		}
		return Response{Body: SubscribeResult{Status: "subscribed"}}, nil
	}

	return Response{}, rpcMethodNotFound(req.Route)
}

func (s *RPC) callTool(ctx context.Context, params ToolCallParams) (Response, error) {
	switch params.Name {
	case ToolCalculate:
		args, ok := params.Arguments.(CalculateRequest)
		if !ok {
			return Response{}, rpcInvalidParams("calculate arguments")
		}
		if err := compute(ctx, calcDelay); err != nil {
			return Response{}, err
		}
		result, err := calculate(args)
		if err != nil {
			return Response{}, err
		}
		return toolText(result)

	case ToolGenerateTask:
		args, ok := params.Arguments.(GenerateTaskArgs)
		if !ok {
			return Response{}, rpcInvalidParams("generate_task arguments")
		}
		if _, found := s.sessions.Get(args.SessionID); !found {
			return Response{}, rpcInvalidParams("invalid or missing sessionId")
		}
		sessionID := args.SessionID
		s.tasks.Start(ctx, args.Complexity, func(progress int, status, result string) {
			s.sessions.Publish(sessionID, stream.Event{
				JSONRPC: "2.0",
				Method:  stream.MethodProgress,
				Params:  stream.Params{Progress: progress, Status: status, Result: result},
			})
		})
		return toolText(map[string]string{"status": "task started"})

	case ToolWorkflowStep:
		args, ok := params.Arguments.(StepRequest)
		if !ok {
			return Response{}, rpcInvalidParams("workflow_step arguments")
		}
		out, err := workflowStep(ctx, args)
		if err != nil {
			return Response{}, err
		}
		return toolText(out)
	}

	return Response{}, rpcMethodNotFound("tool " + params.Name)
}

func (s *RPC) readResource(uri string) (Response, error) {
	switch uri {
	case ResourceLogs:
		return Response{Body: ResourceReadResult{Contents: []ResourceContents{
			{URI: uri, MimeType: "text/plain", Text: "Log entry 1\nLog entry 2"},
		}}}, nil
	case ResourceTicker:
		q, _ := json.Marshal(s.quote.Quote())
		return Response{Body: ResourceReadResult{Contents: []ResourceContents{
			{URI: uri, MimeType: "application/json", Text: string(q)},
		}}}, nil
	case ResourceContext:
		return Response{Body: ResourceReadResult{Contents: []ResourceContents{
			{URI: uri, MimeType: "text/plain", Text: strings.Repeat("x", rpcContextSize)},
		}}}, nil
	}
	return Response{}, rpcInvalidParams("resource " + uri)
}

// toolText wraps a tool result the way the wire format nests it: a JSON
// document inside a text content item.
func toolText(v any) (Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Response{}, rpcInvalidParams("unencodable tool result")
	}
	return Response{Body: ToolCallResult{
		Content: []ContentItem{{Type: "text", Text: string(b)}},
	}}, nil
}

func rpcMethodNotFound(what string) error {
	return &TransportError{Code: -32601, Reason: "method not found: " + what}
}

func rpcInvalidParams(reason string) error {
	return &TransportError{Code: -32602, Reason: reason}
}
