// Package task defines the task model, dependency readiness, and persistence.
package task

import "time"

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Priority ranks tasks from 1 (lowest) to 10 (most urgent).
type Priority int

const (
	PriorityMin     Priority = 1
	PriorityDefault Priority = 5
	PriorityMax     Priority = 10
)

// Clamp constrains a priority to the valid 1-10 range.
func (p Priority) Clamp() Priority {
	if p < PriorityMin {
		return PriorityMin
	}
	if p > PriorityMax {
		return PriorityMax
	}
	return p
}

// Task is a unit of work dispatched to an AI provider.
type Task struct {
	ID          string            `json:"id"`
	TeamID      string            `json:"team_id,omitempty"`
	Subject     string            `json:"subject"`
	Description string            `json:"description"`
	Status      Status            `json:"status"`
	Priority    Priority          `json:"priority"`
	BlockedBy   []string          `json:"blocked_by,omitempty"` // tasks that must complete first
	Blocks      []string          `json:"blocks,omitempty"`     // tasks listing this one in their BlockedBy
	Provider    string            `json:"provider,omitempty"`
	Model       string            `json:"model,omitempty"`
	CostUSD     float64           `json:"cost_usd"`
	AssignedTo  string            `json:"assigned_to,omitempty"` // teammate ID
	Skills      []string          `json:"skills,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Result      string            `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Store persists and retrieves tasks.
type Store interface {
	// Create persists a new task and returns its assigned ID.
	Create(t *Task) (string, error)

	// Get retrieves a task by ID.
	Get(id string) (*Task, error)

	// Update saves changes to an existing task.
	Update(t *Task) error

	// List returns tasks matching the given filter.
	List(filter Filter) ([]*Task, error)

	// Delete removes a task by ID.
	Delete(id string) error
}

// Filter controls which tasks are returned by List.
type Filter struct {
	Status     *Status `json:"status,omitempty"`
	AssignedTo string  `json:"assigned_to,omitempty"`
	TeamID     string  `json:"team_id,omitempty"`
	Limit      int     `json:"limit,omitempty"`
	Offset     int     `json:"offset,omitempty"`
}
