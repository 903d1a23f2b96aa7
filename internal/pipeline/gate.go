package pipeline

import "sync"

type TaskKind string

const (
	TaskTranscribe TaskKind = "transcribe"
	TaskSummarize  TaskKind = "summarize"
)

// TaskState is the gate's current occupancy. Kind "" means idle. It is a
// single tagged value rather than independent nullable fields so "which
// unit is mid-task" can never disagree with "is a task running".
type TaskState struct {
	Kind   TaskKind `json:"kind,omitempty"`
	UnitID string   `json:"unit_id,omitempty"`
	Mode   string   `json:"mode,omitempty"`
}

func (s TaskState) Idle() bool {
	return s.Kind == ""
}

// Gate is the process-wide single-flight guard. At most one transcription
// or summarization task runs at a time; a second request is rejected with
// ErrBusy rather than queued. This serializes the ledger's check-then-
// charge sequence, which is not atomic against a second caller.
type Gate struct {
	mu       sync.Mutex
	state    TaskState
	onChange func(TaskState)
}

func NewGate(onChange func(TaskState)) *Gate {
	return &Gate{onChange: onChange}
}

// TryAcquire claims the gate for one task. On success it returns a
// release func; the caller must defer it. On contention it returns
// ErrBusy and the task that holds the gate.
func (g *Gate) TryAcquire(state TaskState) (func(), error) {
	g.mu.Lock()
	if !g.state.Idle() {
		g.mu.Unlock()
		return nil, ErrBusy
	}
	g.state = state
	g.mu.Unlock()

	g.notify(state)

	return func() {
		g.mu.Lock()
		g.state = TaskState{}
		g.mu.Unlock()
		g.notify(TaskState{})
	}, nil
}

// State returns the current occupancy for status reporting.
func (g *Gate) State() TaskState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) notify(state TaskState) {
	if g.onChange != nil {
		g.onChange(state)
	}
}
