// Package jobs defines the background work that follows a committed expense.
package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeMirrorExpense copies a committed expense into the Notion database.
	JobTypeMirrorExpense JobType = "mirror_expense"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// MirrorExpenseJob carries one committed expense to the mirror.
type MirrorExpenseJob struct {
	JobID string `json:"job_id"`

	// LedgerID is the ledger the expense was appended to.
	LedgerID string                  `json:"ledger_id,omitempty"`
	Expense  domain.FinalizedExpense `json:"expense"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *MirrorExpenseJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *MirrorExpenseJob) GetType() JobType {
	return JobTypeMirrorExpense
}

// GetStatus implements the Job interface.
func (j *MirrorExpenseJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishMirrorExpense(ctx context.Context, job *MirrorExpenseJob) error
	Close() error
}

// Consumer runs a handler for each queued job.
type Consumer interface {
	// Start launches the workers and returns immediately.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error makes the job eligible for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps the latest state of every job.
type JobStore interface {
	SaveJob(ctx context.Context, job *MirrorExpenseJob) error
	GetJob(ctx context.Context, jobID string) (*MirrorExpenseJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*MirrorExpenseJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	ExpenseID string
	LedgerID  string
	Status    JobStatus

	Limit  int
	Offset int
}
