package endpoint

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"
)

const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"

	taskSteps      = 10
	taskResultText = "Task Completed Successfully"
)

// DefaultTaskStepInterval paces one progress step per complexity unit.
const DefaultTaskStepInterval = 100 * time.Millisecond

// TaskManager owns the long-running-task state for one backend instance.
// Nothing here is process-global, so independent runs and parallel tests
// each get their own task space.
type TaskManager struct {
	log      logging.LeveledLogger
	interval time.Duration

	mu    sync.Mutex
	tasks map[string]TaskStatus
}

func NewTaskManager(log logging.LeveledLogger, stepInterval time.Duration) *TaskManager {
	if stepInterval <= 0 {
		stepInterval = DefaultTaskStepInterval
	}
	return &TaskManager{
		log:      log,
		interval: stepInterval,
		tasks:    make(map[string]TaskStatus),
	}
}

// Start launches a background task advancing 10% per step. notify, when
// non-nil, is called after every step and once more with the terminal
// status; the push transport wires it to a session queue.
func (m *TaskManager) Start(ctx context.Context, complexity int, notify func(progress int, status, result string)) string {
	if complexity < 1 {
		complexity = 1
	}
	id := uuid.NewString()

	m.mu.Lock()
	m.tasks[id] = TaskStatus{Status: TaskPending}
	m.mu.Unlock()

	go func() {
		step := m.interval * time.Duration(complexity)
		for i := 1; i <= taskSteps; i++ {
			if err := compute(ctx, step); err != nil {
				m.log.Debugf("task %s aborted: %v", id, err)
				return
			}
			progress := i * 10
			m.set(id, TaskStatus{Status: TaskRunning, Progress: progress})
			if notify != nil {
				notify(progress, TaskRunning, "")
			}
		}
		m.set(id, TaskStatus{Status: TaskCompleted, Progress: 100, Result: taskResultText})
		if notify != nil {
			notify(100, TaskCompleted, taskResultText)
		}
	}()

	return id
}

func (m *TaskManager) Get(id string) (TaskStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.tasks[id]
	return st, ok
}

func (m *TaskManager) set(id string, st TaskStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[id] = st
}
