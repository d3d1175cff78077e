// Package jobs tracks asynchronous tool executions: submissions from
// webhook-style adapters, long-running image pipelines, and anything else
// that completes out of band. Jobs move through a small state machine and
// are pruned after a retention window.
package jobs

import (
	"time"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether the status is absorbing: no further transitions
// are allowed out of it.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// validTransitions is the job state machine. Queued jobs may start running
// or be canceled; running jobs finish, fail, or are canceled.
var validTransitions = map[Status][]Status{
	StatusQueued:  {StatusRunning, StatusCanceled},
	StatusRunning: {StatusCompleted, StatusFailed, StatusCanceled},
}

func canTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one asynchronous tool execution.
type Job struct {
	JobID     string            `json:"jobId"`
	ToolName  string            `json:"toolName"`
	RequestID string            `json:"requestId,omitempty"`
	TaskID    string            `json:"taskId,omitempty"`
	Status    Status            `json:"status"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	Result    any               `json:"result,omitempty"`
	Error     *models.ToolError `json:"error,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Clone returns a shallow-safe copy; metadata is copied so callers cannot
// mutate stored state.
func (j *Job) Clone() *Job {
	clone := *j
	if j.Metadata != nil {
		clone.Metadata = make(map[string]any, len(j.Metadata))
		for k, v := range j.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// Filter selects jobs in List. Zero values match everything.
type Filter struct {
	ToolName  string
	RequestID string
	Status    Status
}

func (f Filter) matches(j *Job) bool {
	if f.ToolName != "" && j.ToolName != f.ToolName {
		return false
	}
	if f.RequestID != "" && j.RequestID != f.RequestID {
		return false
	}
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	return true
}
