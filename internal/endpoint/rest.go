package endpoint

import (
	"context"
	"strings"
	"time"

	"github.com/pion/logging"
)

// Synthetic compute costs, modeled on the endpoint side so the link
// simulator stays independently testable.
const (
	calcDelay       = 10 * time.Millisecond
	chatDelayPerQty = 100 * time.Microsecond // per context character
	step1Delay      = 50 * time.Millisecond
	step2Delay      = 100 * time.Millisecond
	step3Delay      = 200 * time.Millisecond
)

// REST routes.
const (
	RouteStatus     = "/status"
	RouteEcho       = "/echo"
	RouteCalculate  = "/tools/calculate"
	RouteContext    = "/context"
	RouteChat       = "/chat"
	RouteTaskStart  = "/tasks/generate"
	RouteTaskStatus = "/tasks/status"
	RouteWorkflow   = "/workflow/step"
	RouteStock      = "/resources/stock"
)

// REST is the stateless backend: every request carries everything the
// server needs, no session survives between calls.
type REST struct {
	log   logging.LeveledLogger
	tasks *TaskManager
	quote *QuoteSource
}

func NewREST(log logging.LeveledLogger, tasks *TaskManager, quote *QuoteSource) *REST {
	return &REST{log: log, tasks: tasks, quote: quote}
}

func (s *REST) Invoke(ctx context.Context, req Request) (Response, error) {
	switch req.Route {
	case RouteStatus:
		return Response{Body: StatusResponse{Status: "ok", Timestamp: time.Now().UnixMilli()}}, nil

	case RouteEcho:
		body, ok := req.Body.(EchoRequest)
		if !ok {
			return Response{}, errBadRequest("echo payload")
		}
		return Response{Body: EchoResponse{Message: body.Message, Timestamp: time.Now().UnixMilli()}}, nil

	case RouteCalculate:
		body, ok := req.Body.(CalculateRequest)
		if !ok {
			return Response{}, errBadRequest("calculate payload")
		}
		if err := compute(ctx, calcDelay); err != nil {
			return Response{}, err
		}
		result, err := calculate(body)
		if err != nil {
			return Response{}, err
		}
		return Response{Body: result}, nil

	case RouteContext:
		body, ok := req.Body.(ContextRequest)
		if !ok || body.Size < 0 {
			return Response{}, errBadRequest("context size")
		}
		return Response{Body: ContextResponse{Data: strings.Repeat("x", body.Size), Size: body.Size}}, nil

	case RouteChat:
		body, ok := req.Body.(ChatRequest)
		if !ok {
			return Response{}, errBadRequest("chat payload")
		}
		// Processing cost scales with the full resent history.
		contextLen := len(body.Message)
		for _, m := range body.History {
			contextLen += len(m.Content)
		}
		if err := compute(ctx, time.Duration(contextLen)*chatDelayPerQty); err != nil {
			return Response{}, err
		}
		return Response{Body: ChatResponse{
			Response: "Echo: " + body.Message,
			Usage:    contextLen,
		}}, nil

	case RouteTaskStart:
		body, ok := req.Body.(TaskRequest)
		if !ok {
			return Response{}, errBadRequest("task payload")
		}
		id := s.tasks.Start(ctx, body.Complexity, nil)
		return Response{Body: TaskCreated{TaskID: id}}, nil

	case RouteTaskStatus:
		body, ok := req.Body.(TaskStatusRequest)
		if !ok {
			return Response{}, errBadRequest("task id")
		}
		st, found := s.tasks.Get(body.TaskID)
		if !found {
			return Response{}, errNotFound("task")
		}
		return Response{Body: st}, nil

	case RouteWorkflow:
		body, ok := req.Body.(StepRequest)
		if !ok {
			return Response{}, errBadRequest("workflow payload")
		}
		out, err := workflowStep(ctx, body)
		if err != nil {
			return Response{}, err
		}
		return Response{Body: out}, nil

	case RouteStock:
		return Response{Body: s.quote.Quote()}, nil
	}

	return Response{}, errNotFound("route " + req.Route)
}

func calculate(req CalculateRequest) (CalculateResponse, error) {
	var result float64
	switch req.Operation {
	case "add":
		result = req.A + req.B
	case "subtract":
		result = req.A - req.B
	case "multiply":
		result = req.A * req.B
	case "divide":
		if req.B == 0 {
			return CalculateResponse{}, errBadRequest("division by zero")
		}
		result = req.A / req.B
	default:
		return CalculateResponse{}, errBadRequest("unknown operation " + req.Operation)
	}
	return CalculateResponse{Result: result, Operation: req.Operation}, nil
}

func workflowStep(ctx context.Context, req StepRequest) (StepResponse, error) {
	var (
		delay  time.Duration
		output string
	)
	switch req.Step {
	case 1:
		delay, output = step1Delay, "Processed("+req.InputData+")"
	case 2:
		delay, output = step2Delay, "Analyzed("+req.InputData+")"
	case 3:
		delay, output = step3Delay, "Summary("+req.InputData+")"
	default:
		return StepResponse{}, errBadRequest("invalid step")
	}
	if err := compute(ctx, delay); err != nil {
		return StepResponse{}, err
	}
	return StepResponse{Output: output, Step: req.Step}, nil
}
