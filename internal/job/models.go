// Package job provides the job records whose processing the lease lock
// serializes, together with their persistence stores.
package job

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	// StatusPending marks a job waiting to be claimed.
	StatusPending Status = "pending"
	// StatusRunning marks a job claimed by a worker.
	StatusRunning Status = "running"
	// StatusCompleted marks a job whose handler succeeded.
	StatusCompleted Status = "completed"
	// StatusFailed marks a job whose handler returned an error.
	StatusFailed Status = "failed"
)

// Job is a unit of work tied to a named resource. Workers acquire the
// lease lock for Resource before running the job, so jobs sharing a
// resource never run concurrently across instances.
type Job struct {
	ID        string
	Resource  string
	Payload   json.RawMessage
	Status    Status
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}
