package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/toolhub/internal/observability"
	"github.com/haasonsaas/toolhub/pkg/models"
)

// ErrInvalidTransition is returned when a job cannot move to the requested
// status from its current one. Terminal states absorb all transitions.
type ErrInvalidTransition struct {
	JobID string
	From  Status
	To    Status
}

func (e *ErrInvalidTransition) Error() string {
	return "invalid job transition " + string(e.From) + " -> " + string(e.To) + " for " + e.JobID
}

// ManagerConfig tunes the job manager.
type ManagerConfig struct {
	// TTL is how long terminal jobs are retained before the sweeper
	// removes them. Defaults to 10 minutes.
	TTL time.Duration

	// SweepInterval is how often the sweeper runs. Defaults to TTL/10,
	// with a 1 second floor.
	SweepInterval time.Duration
}

// Manager owns the job lifecycle: creation, state transitions, result
// retrieval, and expiry. Transitions are serialized per manager so the
// state machine cannot race.
type Manager struct {
	store   Store
	events  *observability.EventLog
	metrics *observability.Metrics
	ttl     time.Duration

	mu     sync.Mutex
	closed bool
	stop   chan struct{}
	done   chan struct{}

	now func() time.Time
}

// NewManager creates a job manager over the given store. events and
// metrics may be nil.
func NewManager(store Store, events *observability.EventLog, metrics *observability.Metrics, config ManagerConfig) *Manager {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	interval := config.SweepInterval
	if interval <= 0 {
		interval = ttl / 10
		if interval < time.Second {
			interval = time.Second
		}
	}

	m := &Manager{
		store:   store,
		events:  events,
		metrics: metrics,
		ttl:     ttl,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go m.sweep(interval)
	return m
}

// WithClock overrides the time source for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Submit creates a queued job and returns it. The job ID is a fresh UUID
// unless the caller supplies one (webhook adapters echo upstream IDs).
func (m *Manager) Submit(ctx context.Context, toolName string, execCtx models.ExecContext, metadata map[string]any) (*Job, error) {
	return m.SubmitWithID(ctx, uuid.NewString(), toolName, execCtx, metadata)
}

// SubmitWithID creates a queued job under a caller-chosen ID.
func (m *Manager) SubmitWithID(ctx context.Context, jobID, toolName string, execCtx models.ExecContext, metadata map[string]any) (*Job, error) {
	now := m.now().UTC()
	job := &Job{
		JobID:     jobID,
		ToolName:  toolName,
		RequestID: execCtx.RequestID,
		TaskID:    execCtx.TaskID,
		Status:    StatusQueued,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(ctx, job); err != nil {
		return nil, err
	}
	m.emit(observability.EventJobSubmitted, job, nil)
	if m.metrics != nil {
		m.metrics.RecordJob(toolName, string(StatusQueued))
	}
	return job.Clone(), nil
}

// MarkRunning moves a queued job to running.
func (m *Manager) MarkRunning(ctx context.Context, jobID string) (*Job, error) {
	return m.transition(ctx, jobID, StatusRunning, nil, nil)
}

// Complete moves a running job to completed with its result.
func (m *Manager) Complete(ctx context.Context, jobID string, result any) (*Job, error) {
	return m.transition(ctx, jobID, StatusCompleted, result, nil)
}

// Fail moves a running job to failed with its error.
func (m *Manager) Fail(ctx context.Context, jobID string, toolErr *models.ToolError) (*Job, error) {
	return m.transition(ctx, jobID, StatusFailed, nil, toolErr)
}

// Cancel moves a queued or running job to canceled. Canceling a terminal
// job is an invalid transition.
func (m *Manager) Cancel(ctx context.Context, jobID string) (*Job, error) {
	return m.transition(ctx, jobID, StatusCanceled, nil, nil)
}

func (m *Manager) transition(ctx context.Context, jobID string, to Status, result any, toolErr *models.ToolError) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !canTransition(job.Status, to) {
		return nil, &ErrInvalidTransition{JobID: jobID, From: job.Status, To: to}
	}

	job.Status = to
	job.UpdatedAt = m.now().UTC()
	if result != nil {
		job.Result = result
	}
	if toolErr != nil {
		job.Error = toolErr
	}
	if err := m.store.Update(ctx, job); err != nil {
		return nil, err
	}

	switch to {
	case StatusCompleted:
		m.emit(observability.EventJobCompleted, job, nil)
	case StatusFailed:
		m.emit(observability.EventJobFailed, job, toolErr)
	}
	if m.metrics != nil && to.Terminal() {
		m.metrics.RecordJob(job.ToolName, string(to))
	}
	return job.Clone(), nil
}

// GetJob returns the job, or ErrJobNotFound.
func (m *Manager) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return m.store.Get(ctx, jobID)
}

// GetStatus returns just the job's status.
func (m *Manager) GetStatus(ctx context.Context, jobID string) (Status, error) {
	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// GetResult returns (result, true) only when the job completed
// successfully. Failed, canceled, in-flight, and unknown jobs return
// ok=false.
func (m *Manager) GetResult(ctx context.Context, jobID string) (any, bool, error) {
	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		var notFound *ErrJobNotFound
		if errors.As(err, &notFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if job.Status != StatusCompleted {
		return nil, false, nil
	}
	return job.Result, true, nil
}

// List returns jobs matching the filter, oldest first.
func (m *Manager) List(ctx context.Context, filter Filter) ([]*Job, error) {
	return m.store.List(ctx, filter)
}

// Dispose stops the sweeper and closes the store.
func (m *Manager) Dispose() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.stop)
	m.mu.Unlock()
	<-m.done
	return m.store.Close()
}

func (m *Manager) sweep(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			cutoff := m.now().UTC().Add(-m.ttl)
			_, _ = m.store.Prune(context.Background(), cutoff)
		}
	}
}

func (m *Manager) emit(eventType observability.EventType, job *Job, toolErr *models.ToolError) {
	if m.events == nil {
		return
	}
	fields := map[string]any{
		"jobId":  job.JobID,
		"status": string(job.Status),
	}
	if toolErr != nil {
		fields["errorKind"] = string(toolErr.Kind)
	}
	m.events.Append(observability.Event{
		Type:      eventType,
		RequestID: job.RequestID,
		TaskID:    job.TaskID,
		ToolName:  job.ToolName,
		Fields:    fields,
	})
}
