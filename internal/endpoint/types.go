package endpoint

// Wire types shared by both mock backends. Field names follow the JSON
// the clients put on the (simulated) wire, so WireSize accounting matches
// what a real serializer would produce.

type StatusResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

type EchoRequest struct {
	Message string `json:"message"`
}

type EchoResponse struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type CalculateRequest struct {
	Operation string  `json:"operation"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
}

type CalculateResponse struct {
	Result    float64 `json:"result"`
	Operation string  `json:"operation"`
}

type ContextRequest struct {
	Size int `json:"size"`
}

type ContextResponse struct {
	Data string `json:"data"`
	Size int    `json:"size"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest carries the full accumulated history: the stateless
// discipline resends everything each turn.
type ChatRequest struct {
	History []ChatMessage `json:"history"`
	Message string        `json:"message"`
}

type ChatResponse struct {
	Response string `json:"response"`
	Usage    int    `json:"usage"`
}

type TaskRequest struct {
	Complexity int `json:"complexity"`
}

type TaskCreated struct {
	TaskID string `json:"task_id"`
}

type TaskStatusRequest struct {
	TaskID string `json:"task_id"`
}

type TaskStatus struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Result   string `json:"result,omitempty"`
}

type StepRequest struct {
	Step      int    `json:"step"`
	InputData string `json:"input_data"`
}

type StepResponse struct {
	Output string `json:"output"`
	Step   int    `json:"step"`
}

type QuoteResponse struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}
