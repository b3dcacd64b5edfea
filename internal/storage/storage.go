// Package storage defines persisted batch results and the queued job records
// the worker consumes. Implementations live in subpackages.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// DefaultPageSize is used when a list query leaves the page size unset.
const DefaultPageSize = 20

// MaxPageSize bounds a single list page.
const MaxPageSize = 100

// BatchRecord is one stored batch result.
type BatchRecord struct {
	ID                 string
	Name               string
	Defender           string
	Requested          int
	Trials             int
	CorruptionKills    int
	ExceededMaxVolleys bool
	Cancelled          bool
	// Volleys and TUs are the kill histograms keyed by bucket value.
	Volleys map[int]int
	TUs     map[int]int
	// Config is the JSON encoded configuration that produced the batch.
	Config    []byte
	CreatedAt time.Time
}

// BatchQuery selects a page of batches, newest first.
type BatchQuery struct {
	// Filter is an AIP-160 expression over defender, name, trials,
	// exceeded, cancelled and created_at.
	Filter    string
	PageSize  int
	PageToken string
}

// BatchPage is one page of batches.
type BatchPage struct {
	Batches       []BatchRecord
	NextPageToken string
}

// BatchStore persists batch results.
type BatchStore interface {
	PutBatch(ctx context.Context, batch BatchRecord) error
	GetBatch(ctx context.Context, id string) (BatchRecord, error)
	ListBatches(ctx context.Context, query BatchQuery) (BatchPage, error)
}

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// JobRecord is a batch waiting for, or processed by, the worker.
type JobRecord struct {
	ID string
	// Config is the JSON encoded loadout configuration to run.
	Config    []byte
	Status    JobStatus
	Error     string
	BatchID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClaimFunc moves a queued job to its claimed state. Returning an error leaves
// the job queued.
type ClaimFunc func(queued JobRecord) (JobRecord, error)

// JobStore persists the job queue.
type JobStore interface {
	EnqueueJob(ctx context.Context, job JobRecord) error
	// ClaimNextJob hands the oldest queued job to start and stores the record
	// start returns, atomically with the selection. A nil start marks the job
	// running. The bool is false when the queue is empty.
	ClaimNextJob(ctx context.Context, now time.Time, start ClaimFunc) (JobRecord, bool, error)
	UpdateJob(ctx context.Context, job JobRecord) error
	GetJob(ctx context.Context, id string) (JobRecord, error)
}
